package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"currency-lens/internal/vision"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [gemini|openai|both]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required for Gemini\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY - Required for OpenAI\n")
		os.Exit(1)
	}

	imagePath := os.Args[1]
	provider := "both"
	if len(os.Args) >= 3 {
		provider = os.Args[2]
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	mimeType := getMimeType(imagePath)
	imageB64 := base64.StdEncoding.EncodeToString(imageData)
	ctx := context.Background()

	switch provider {
	case "gemini":
		printResult(newGemini(ctx).Analyze(ctx, imageB64, mimeType))
	case "openai":
		printResult(newOpenAI().Analyze(ctx, imageB64, mimeType))
	case "both":
		orchestrator := vision.NewOrchestrator(newOpenAI(), newGemini(ctx))
		openaiRes, geminiRes := orchestrator.Analyze(ctx, imageData, mimeType)

		fmt.Println("=== OPENAI ===")
		printResult(openaiRes)
		fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
		fmt.Println("=== GEMINI ===")
		printResult(geminiRes)
		fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
		fmt.Println("=== COMBINED ===")
		printJSON(vision.Combine(openaiRes, geminiRes))
	default:
		fmt.Fprintf(os.Stderr, "Unknown provider: %s (use gemini, openai, or both)\n", provider)
		os.Exit(1)
	}
}

func newGemini(ctx context.Context) vision.Analyzer {
	analyzer, err := vision.NewGeminiAnalyzer(ctx, os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating Gemini analyzer: %v\n", err)
		os.Exit(1)
	}
	return analyzer
}

func newOpenAI() vision.Analyzer {
	return vision.NewOpenAIAnalyzer(os.Getenv("OPENAI_API_KEY"))
}

func printResult(result vision.ProviderResult) {
	fmt.Printf("Provider: %s\n", result.Provider)
	fmt.Printf("Variant:  %s\n", result.Kind)
	printJSON(result)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

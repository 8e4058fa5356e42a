package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"lookbook/internal/infra/credentials"
)

// geminikey stores a Gemini API key in the dotenv file named by
// GEMINI_KEY_FILE so later sessions find it without prompting.
func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var keyFlag, fileFlag string
	flag.StringVar(&keyFlag, "key", "", "Gemini API key (read from stdin when empty)")
	flag.StringVar(&fileFlag, "file", os.Getenv("GEMINI_KEY_FILE"), "Key file to write")
	flag.Parse()

	path := strings.TrimSpace(fileFlag)
	if path == "" {
		fmt.Fprintln(os.Stderr, "a key file is required via -file or GEMINI_KEY_FILE")
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		fmt.Fprint(os.Stderr, "Gemini API key: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		key = strings.TrimSpace(line)
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "GEMINI API key is required via -key or stdin")
		os.Exit(1)
	}

	if err := credentials.SaveKeyFile(path, key); err != nil {
		fmt.Fprintf(os.Stderr, "save key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("stored %s api key in %s\n", credentials.ProviderGemini, path)
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/gophersearch/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Gophersearch Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.LLM.BaseURL = prompt(scanner, "LLM base URL", cfg.LLM.BaseURL)
		cfg.LLM.APIKey = prompt(scanner, "LLM API key", cfg.LLM.APIKey)
		cfg.LLM.Model = prompt(scanner, "LLM model name", cfg.LLM.Model)
		cfg.LLM.EmbeddingModel = prompt(scanner, "Embedding model", cfg.LLM.EmbeddingModel)

		cfg.Search.Provider = prompt(scanner, "Search provider (brave/google)", cfg.Search.Provider)
		switch cfg.Search.Provider {
		case "google":
			cfg.Google.APIKey = prompt(scanner, "Google API key", cfg.Google.APIKey)
			cfg.Google.CX = prompt(scanner, "Google search engine id (cx)", cfg.Google.CX)
		default:
			cfg.Brave.APIKey = prompt(scanner, "Brave API key", cfg.Brave.APIKey)
		}
		resultsStr := prompt(scanner, "Search results per query", strconv.Itoa(cfg.Search.MaxResults))
		if n, err := strconv.Atoi(resultsStr); err == nil {
			cfg.Search.MaxResults = n
		}

		cfg.Storage.Driver = prompt(scanner, "Storage driver (file/sqlite)", cfg.Storage.Driver)
		cfg.HTTP.Addr = prompt(scanner, "HTTP listen address", cfg.HTTP.Addr)
		cfg.Redis.URL = prompt(scanner, "Redis URL for the page cache (optional)", cfg.Redis.URL)
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		if err := config.Validate(cfg); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

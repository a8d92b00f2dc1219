package cmd

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aloqachat/aloqa/core/config"
)

var rootCmd = &cobra.Command{
	Use:   "aloqa",
	Short: "Multi-tenant AI sales agent for Telegram, Instagram and Messenger",
	Long: `Aloqa connects a business's messaging channels to an AI sales agent:
inbound messages are answered with the tenant's persona and knowledge base,
hot leads and complaints are escalated to a human operator.`,
}

func init() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	time.Local = time.UTC
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalln("Failed to load configuration:", err)
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

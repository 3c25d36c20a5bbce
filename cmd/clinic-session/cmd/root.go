package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "clinic-session",
	Short: "Session service for the veterinary clinic front ends",
	Long: `clinic-session keeps the signed-in staff member or pet owner for a workstation:
it restores the stored session on start, signs in and out against the clinic backend
and answers role checks. Run "serve" for the local HTTP API or use the one-shot commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal outside development.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before reading the environment")
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tidemark/internal/core/domain"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models with batch support",
	Run:   runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) {
	cmd.Println(headingStyle.Render("Models with Batch Support"))

	cmd.Println("\nModel Aliases:")
	for _, key := range []string{"nano", "mini", "full"} {
		cmd.Printf("%s -> %s\n", key, domain.ModelAliases[key])
	}

	cmd.Println("\nText / Chat Models:")
	for _, model := range domain.TextChatModels {
		cmd.Println(model)
	}

	cmd.Println("\nEmbedding Models:")
	for _, model := range domain.EmbeddingModels {
		cmd.Println(model)
	}

	cmd.Println("\nThe Batch API processes asynchronous jobs (text, chat, image) and returns them within 24 hours")
}

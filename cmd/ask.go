package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docchat/docchat/internal/conversation"
	"github.com/docchat/docchat/internal/coordinator"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	if err := rt.coord.Send(ctx, question); err != nil {
		if errors.Is(err, coordinator.ErrNotPermitted) {
			return errors.New("question rejected: empty input or not signed in")
		}
		// The transcript holds the fixed failure notice; a script needs
		// the non-zero exit to tell that apart from an answer.
		return fmt.Errorf("asking failed: %w", err)
	}

	msgs := rt.store.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != conversation.RoleAssistant {
		return errors.New("no answer received")
	}

	fmt.Println(last.Content)
	return nil
}

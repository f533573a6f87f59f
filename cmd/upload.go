package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docchat/docchat/internal/coordinator"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a document into the assistant's retrieval context",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := rt.coord.Upload(ctx, filepath.Base(path), f); err != nil {
		if errors.Is(err, coordinator.ErrNotPermitted) {
			return errors.New("upload rejected: not signed in")
		}
		return fmt.Errorf("uploading %s: %w", path, err)
	}

	fmt.Printf("Uploaded %s\n", filepath.Base(path))
	return nil
}

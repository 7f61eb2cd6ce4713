package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/recli/internal/schema"
)

var validateWrite bool

var validateCmd = &cobra.Command{
	Use:   "validate <session-id>",
	Short: "Validate and normalize a session's command log",
	Long: `Validate every event in a session's command log against schema version 1
and normalize legacy timestamps to RFC3339 UTC.

Validation is per-event: a bad record is reported and skipped, never fatal
to the rest of the log. The source file is never modified implicitly; the
normalized log is written next to it as commands.normalized.jsonl, or over
the original with --write.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("recorder not initialized")
		}
		sessionID := args[0]
		if _, err := Sessions.Get(sessionID); err != nil {
			return err
		}

		sourcePath := Sessions.CommandLogPath(sessionID)
		source, err := os.Open(sourcePath)
		if err != nil {
			return fmt.Errorf("opening command log: %w", err)
		}
		defer func() { _ = source.Close() }()

		targetPath := filepath.Join(filepath.Dir(sourcePath), "commands.normalized.jsonl")
		tempPath := targetPath + ".tmp"
		target, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("creating normalized log: %w", err)
		}
		defer func() { _ = os.Remove(tempPath) }()

		valid, normalized, failed := 0, 0, 0
		lineNo := 0
		scanner := bufio.NewScanner(source)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			lineNo++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var event schema.LogEventV1
			if err := json.Unmarshal(line, &event); err != nil {
				failed++
				fmt.Printf("line %d: undecodable record: %v\n", lineNo, err)
				continue
			}

			out, err := schema.Validate(event)
			if err != nil {
				failed++
				fmt.Printf("line %d (offset %d): %v\n", lineNo, event.Offset, err)
				continue
			}

			if out.Timestamp != event.Timestamp {
				normalized++
			} else {
				valid++
			}

			data, err := json.Marshal(out)
			if err != nil {
				return fmt.Errorf("marshalling normalized event: %w", err)
			}
			if _, err := target.Write(append(data, '\n')); err != nil {
				return fmt.Errorf("writing normalized log: %w", err)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("scanning command log: %w", err)
		}

		if err := target.Sync(); err != nil {
			return fmt.Errorf("syncing normalized log: %w", err)
		}
		if err := target.Close(); err != nil {
			return fmt.Errorf("closing normalized log: %w", err)
		}

		if validateWrite {
			targetPath = sourcePath
		}
		if err := os.Rename(tempPath, targetPath); err != nil {
			return fmt.Errorf("finalizing normalized log: %w", err)
		}

		fmt.Printf("\nsession %s: %d valid, %d normalized, %d reported\n", sessionID, valid, normalized, failed)
		fmt.Printf("normalized log: %s\n", targetPath)
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateWrite, "write", false, "overwrite the source log with the normalized output")
	rootCmd.AddCommand(validateCmd)
}

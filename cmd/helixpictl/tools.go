package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"helixpi/internal/model"
	"helixpi/internal/render"
	"helixpi/internal/scenario"
)

func newRenderCmd() *cobra.Command {
	var (
		inputPath string
		actor     string
		parse     bool
		indent    int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print a program tree as pseudocode, or parse pseudocode into a tree",
		Long: `Without --parse the input is either an entity tree or an output payload
(select the actor with --actor) and is printed as pseudocode. With --parse the
input is pseudocode and the tree is printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if parse {
				text, err := readAll(cmd, inputPath)
				if err != nil {
					return err
				}
				entity, err := render.Parse(string(text))
				if err != nil {
					return err
				}
				data, err := model.EncodeEntity(entity)
				if err != nil {
					return err
				}
				_, err = out.Write(append(data, '\n'))
				return err
			}

			root, err := readProgram(cmd, inputPath, actor)
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, render.Render(root, indent))
			return err
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input file (- for stdin)")
	cmd.Flags().StringVar(&actor, "actor", "", "actor to render from an output payload")
	cmd.Flags().BoolVar(&parse, "parse", false, "parse pseudocode into a JSON tree")
	cmd.Flags().IntVar(&indent, "indent", 0, "initial indentation level")
	return cmd
}

func readProgram(cmd *cobra.Command, path, actor string) (model.Entity, error) {
	if actor == "" {
		data, err := readAll(cmd, path)
		if err != nil {
			return nil, err
		}
		root, err := model.DecodeEntity(data)
		if err != nil {
			return nil, fmt.Errorf("read tree: %w", err)
		}
		return root, nil
	}

	var output model.Output
	if err := readJSONFile(cmd, path, &output); err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	tree, ok := output.Entities[actor]
	if !ok || tree.Root == nil {
		return nil, fmt.Errorf("output has no program for actor %q", actor)
	}
	return tree.Root, nil
}

func newInterpolateCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "interpolate",
		Short: "Fill the gaps of a sparse frame list by linear interpolation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var samples []model.Frame
			if err := readJSONFile(cmd, inputPath, &samples); err != nil {
				return fmt.Errorf("read frames: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), scenario.Interpolate(samples))
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON array of frames (- for stdin)")
	return cmd
}

func newRangesCmd() *cobra.Command {
	var (
		inputPath string
		end       int
	)
	cmd := &cobra.Command{
		Use:   "ranges",
		Short: "Convert keydown/keyup events into per-key press intervals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var events map[int][]model.InputEvent
			if err := readJSONFile(cmd, inputPath, &events); err != nil {
				return fmt.Errorf("read events: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), scenario.InputRanges(events, end))
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON object of frame -> events (- for stdin)")
	cmd.Flags().IntVar(&end, "end", 0, "frame that closes keys still held")
	return cmd
}

func readAll(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

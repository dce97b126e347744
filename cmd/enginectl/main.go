package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	overwrite   bool
	userName    string
	vars        map[string]string
	spin        bool
	withBackend bool

	rootCmd = &cobra.Command{
		Use:   "enginectl",
		Short: "Operator tools for the chat trigger engine",
	}

	importCmd = &cobra.Command{
		Use:   "import [engine file]",
		Short: "Store the rules and trigger configs of an engine file in the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	validateCmd = &cobra.Command{
		Use:   "validate [engine file]",
		Short: "Check an engine file without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	classifyCmd = &cobra.Command{
		Use:   "classify [message]",
		Short: "Classify a message and show the rules it would match",
		Args:  cobra.ExactArgs(1),
		RunE:  runClassify,
	}

	renderCmd = &cobra.Command{
		Use:   "render [template]",
		Short: "Render a message template with variables and spintax",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
)

func init() {
	importCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace stored rules and configs with the file's")

	classifyCmd.Flags().BoolVar(&withBackend, "ai", false, "use the OpenAI backend when OPENAI_API_KEY is set")

	renderCmd.Flags().StringVar(&userName, "name", "", "recipient name for {name}")
	renderCmd.Flags().StringToStringVar(&vars, "var", nil, "extra variables, key=value")
	renderCmd.Flags().BoolVar(&spin, "spin", true, "expand {a|b} spintax")

	rootCmd.AddCommand(importCmd, validateCmd, classifyCmd, renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

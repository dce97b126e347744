package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chat-trigger-engine/internal/ai"
	"chat-trigger-engine/internal/automation"
	"chat-trigger-engine/internal/config"
	"chat-trigger-engine/internal/database"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/rules"
	"chat-trigger-engine/internal/template"
)

func runImport(cmd *cobra.Command, args []string) error {
	f, err := automation.LoadEngineFile(args[0])
	if err != nil {
		return err
	}

	cfg := config.LoadConfig()
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}

	configs := automation.NewConfigSource(db)
	if err := configs.Reload(); err != nil {
		return err
	}
	sum, err := automation.ImportEngineFile(db, configs, f, overwrite)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules, %d group configs, global config: %v\n", sum.Rules, sum.Groups, sum.Global)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, err := automation.LoadEngineFile(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d accounts, %d knowledge entries, %d rules, %d group configs\n",
		len(f.Accounts), len(f.Knowledge.Entries), len(f.Rules), len(f.Groups))
	if f.Trigger != nil {
		fmt.Fprintf(out, "global mode %s (active: %v)\n", f.Trigger.Mode, f.Trigger.IsActive)
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()

	var client ai.ChatClient
	if withBackend {
		c, err := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return err
		}
		client = c
	}

	classifier := intent.NewClassifier(client, nil, intent.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res := classifier.Classify(ctx, args[0], "", false)

	var matched []string
	if path := cfg.EngineFile; path != "" {
		f, err := automation.LoadEngineFile(path)
		if err != nil {
			return err
		}
		matched = rules.Names(rules.Evaluate(res, f.Rules, 1))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*intent.Result
		MatchedRules []string `json:"matchedRules"`
	}{res, matched})
}

func runRender(cmd *cobra.Command, args []string) error {
	text := template.Personalize(args[0], userName)
	text = template.NewExpander(time.Now().UnixNano()).Render(text, vars, spin)
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

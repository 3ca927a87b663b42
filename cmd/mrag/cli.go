package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/xxxsen/mrag/internal/github"
	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/jwt"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD93D"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

func newTokenCmd(configPath *string) *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "issue a bearer token for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.JWTTTLHours) * time.Hour
			}
			token, err := jwt.GenerateToken(userID, []byte(cfg.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "tenant id carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to jwt_ttl_hours")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newIngestCmd(configPath *string) *cobra.Command {
	var userID, source, file string
	cmd := &cobra.Command{
		Use:   "ingest [text or github url]",
		Short: "ingest text, a file, a repository or a profile for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				n, err := a.ingest.IngestFile(ctx, filepath.Base(file), "", data, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d chunks from %s\n", titleStyle.Render("ingested"), n, file)
				return nil
			}
			text := strings.Join(args, " ")
			res, err := a.ingest.Ingest(ctx, model.IngestRequest{Text: text, Source: source, UserID: userID})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s: %d chunks from %s\n", titleStyle.Render("ingested"), res.Kind, res.Chunks, res.Source)
			if res.Profile != nil {
				printStages(out, res.Profile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "tenant id")
	cmd.Flags().StringVar(&source, "source", "", "source label for plain text")
	cmd.Flags().StringVar(&file, "file", "", "ingest a local file instead of text")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAskCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "ask a question against a tenant's documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()
			question := strings.Join(args, " ")
			fmt.Fprintln(out, titleStyle.Render("Q: "+question))

			ans := a.chat.Answer(cmd.Context(), question, userID)
			if ans.Err != nil {
				fmt.Fprintln(out, errorStyle.Render(ans.Err.Error()))
				return ans.Err
			}
			for tok := range ans.Tokens {
				if tok.Err != nil {
					fmt.Fprintln(out)
					fmt.Fprintln(out, errorStyle.Render(tok.Err.Error()))
					return tok.Err
				}
				fmt.Fprint(out, answerStyle.Render(tok.Text))
			}
			fmt.Fprintln(out)
			for i, s := range ans.Sources {
				fmt.Fprintln(out, sourceStyle.Render(fmt.Sprintf("[%d] %s", i+1, s.Source)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "tenant id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [profile url]",
		Short: "print the activity summary of a GitHub profile without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			analyzer := github.NewAnalyzer(github.Config{
				BaseURL:    cfg.GitHub.BaseURL,
				GraphQLURL: cfg.GitHub.GraphQLURL,
				Token:      cfg.GitHub.Token,
				Timeout:    time.Duration(cfg.GitHub.TimeoutSeconds) * time.Second,
			})
			summary := analyzer.Analyze(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, github.RenderSummary(summary))
			printStages(out, summary)
			return nil
		},
	}
}

func printStages(out io.Writer, summary *model.ProfileSummary) {
	for _, st := range summary.Stages {
		if st.Degraded {
			fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("stage %s degraded: %s", st.Stage, st.Reason)))
		}
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/scoring"
	"github.com/fairyhunter13/career-readiness/internal/scoring/heuristic"
)

func newHeuristicCmd() *cobra.Command {
	var (
		in, typ, keywords string
	)
	cmd := &cobra.Command{
		Use:   "heuristic",
		Short: "Score a responses JSON object with the keyword scorer",
		Long: `Scores questionnaire responses without any external call.

The input is a JSON object mapping question text to the answer.

Examples:
  readiness heuristic --type ijrl --in responses.json
  cat responses.json | readiness heuristic --type fjrl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := domain.ParseAssessmentType(typ)
			if err != nil {
				return err
			}
			responses, err := readResponses(cmd, in)
			if err != nil {
				return err
			}
			s, err := newScorer(keywords)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s.Analyze(responses.Texts(), t))
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "Responses JSON file, - for stdin")
	cmd.Flags().StringVarP(&typ, "type", "t", string(domain.TypeIdealJob), "Assessment type code")
	cmd.Flags().StringVar(&keywords, "keywords", "", "Keyword YAML overriding the built-in taxonomy")
	return cmd
}

func newScorer(path string) (*heuristic.Scorer, error) {
	if path == "" {
		return heuristic.NewDefaultScorer()
	}
	cfg, err := heuristic.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return heuristic.NewScorer(cfg)
}

func readResponses(cmd *cobra.Command, path string) (domain.Responses, error) {
	b, err := readInput(cmd, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}
	var r domain.Responses
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: responses must be a JSON object: %v", domain.ErrInvalidArgument, err)
	}
	if len(r) == 0 {
		return nil, domain.ErrMissingResponses
	}
	return r, nil
}

func newCombineCmd() *cobra.Command {
	var form, resume, weight int
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Blend a form overall score with a resume score",
		Example: `  readiness combine --form 72 --resume 64
  readiness combine --form 72 --resume 64 --weight 70`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if weight < 0 || weight > 100 {
				return fmt.Errorf("%w: --weight must be within 0..100", domain.ErrInvalidArgument)
			}
			cs := scoring.Combine(scoring.FormContribution(form, weight), resume, weight)
			return printJSON(cmd.OutOrStdout(), cs)
		},
	}
	cmd.Flags().IntVar(&form, "form", 0, "Form overall score (0-100)")
	cmd.Flags().IntVar(&resume, "resume", 0, "Overall resume score (0-100)")
	cmd.Flags().IntVar(&weight, "weight", scoring.DefaultFormWeight, "Percentage taken from the form")
	_ = cmd.MarkFlagRequired("form")
	_ = cmd.MarkFlagRequired("resume")
	return cmd
}

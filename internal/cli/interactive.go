package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/cortexdesk/config"
	"github.com/dyike/cortexdesk/consts"
)

var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,14}$`)

var analystLabels = map[string]string{
	consts.AnalystMarket:       "Market Analyst",
	consts.AnalystSocial:       "Social Media Analyst",
	consts.AnalystNews:         "News Analyst",
	consts.AnalystFundamentals: "Fundamentals Analyst",
}

// researchDepths maps the depth choice to debate and risk rounds.
var researchDepths = []struct {
	label  string
	rounds int
}{
	{"Shallow (1 round) - quick debate", 1},
	{"Medium (3 rounds) - balanced debate", 3},
	{"Deep (5 rounds) - thorough debate", 5},
}

func validateTicker(val interface{}) error {
	s, _ := val.(string)
	if !tickerPattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("%q is not a ticker symbol", s)
	}
	return nil
}

func validateDate(val interface{}) error {
	s, _ := val.(string)
	_, err := resolveDate(s, time.Now())
	return err
}

// interactiveChoices is what the prompts collect.
type interactiveChoices struct {
	Ticker   string
	Date     string
	Analysts []string
	Depth    string
	Online   bool
}

// apply turns the answers into a run config.
func (c interactiveChoices) apply(base *config.Config) (*config.Config, error) {
	cfg := base.Clone()
	labels := make(map[string]string, len(analystLabels))
	for k, v := range analystLabels {
		labels[v] = k
	}
	cfg.SelectedAnalysts = cfg.SelectedAnalysts[:0]
	for _, a := range c.Analysts {
		if name, ok := labels[a]; ok {
			cfg.SelectedAnalysts = append(cfg.SelectedAnalysts, name)
		}
	}
	for _, d := range researchDepths {
		if d.label == c.Depth {
			cfg.MaxDebateRounds = d.rounds
			cfg.MaxRiskDiscussRounds = d.rounds
		}
	}
	cfg.OnlineTools = c.Online
	return cfg, cfg.Validate()
}

func (a *app) runInteractive(ctx context.Context) error {
	fmt.Fprintln(a.out, titleStyle.Render("cortexdesk "+Version))
	fmt.Fprintln(a.out, mutedStyle.Render("analysts → bull/bear debate → trader → risk debate → BUY / SELL / HOLD"))

	choices := interactiveChoices{Online: a.cfg.OnlineTools}
	if err := survey.AskOne(&survey.Input{
		Message: "Ticker symbol to analyze (e.g. AAPL, 0700.HK):",
	}, &choices.Ticker, survey.WithValidator(validateTicker)); err != nil {
		return err
	}
	if err := survey.AskOne(&survey.Input{
		Message: "Trade date (YYYY-MM-DD):",
		Default: time.Now().Format(time.DateOnly),
	}, &choices.Date, survey.WithValidator(validateDate)); err != nil {
		return err
	}

	var options, defaults []string
	for _, name := range consts.DefaultAnalysts {
		options = append(options, analystLabels[name])
	}
	for _, name := range a.cfg.SelectedAnalysts {
		defaults = append(defaults, analystLabels[name])
	}
	if err := survey.AskOne(&survey.MultiSelect{
		Message: "Select analyst team members:",
		Options: options,
		Default: defaults,
		Help:    "Analysts run in the listed order. Use space to select, enter to confirm.",
	}, &choices.Analysts, survey.WithValidator(survey.MinItems(1))); err != nil {
		return err
	}

	var depths []string
	for _, d := range researchDepths {
		depths = append(depths, d.label)
	}
	if err := survey.AskOne(&survey.Select{
		Message: "Select research depth:",
		Options: depths,
		Default: depths[0],
	}, &choices.Depth); err != nil {
		return err
	}
	if err := survey.AskOne(&survey.Confirm{
		Message: "Use online data tools?",
		Default: choices.Online,
	}, &choices.Online); err != nil {
		return err
	}

	cfg, err := choices.apply(a.cfg)
	if err != nil {
		return err
	}
	date, err := resolveDate(choices.Date, time.Now())
	if err != nil {
		return err
	}
	return a.analyze(ctx, cfg, choices.Ticker, date, progressPrinter(a.out), true)
}

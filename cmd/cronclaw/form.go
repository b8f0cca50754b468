package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/cronclaw/internal/cron"
)

// jobInput collects the fields of a new job from flags or the form.
type jobInput struct {
	channelID   string
	schedule    string
	prompt      string
	description string
}

func (in *jobInput) complete() bool {
	return in.channelID != "" && in.schedule != "" && strings.TrimSpace(in.prompt) != ""
}

func (in *jobInput) validate() error {
	return errors.Join(
		validateChannel(in.channelID),
		validateSchedule(in.schedule),
		validatePrompt(in.prompt),
	)
}

func validateChannel(s string) error {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("channel %q must be a numeric channel ID", s)
	}
	return nil
}

func validateSchedule(s string) error {
	if err := cron.ValidateSchedule(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("schedule %q: %w", s, err)
	}
	return nil
}

func validatePrompt(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("prompt must not be empty")
	}
	return nil
}

// promptJob asks for the fields in that are still empty.
func promptJob(in *jobInput) error {
	var fields []huh.Field
	if in.channelID == "" {
		fields = append(fields, huh.NewInput().
			Title("Channel ID").
			Description("Discord channel that receives the replies").
			Value(&in.channelID).
			Validate(validateChannel))
	}
	if in.schedule == "" {
		fields = append(fields, huh.NewInput().
			Title("Schedule").
			Description("Cron expression, e.g. 0 9 * * 1-5 or @daily").
			Value(&in.schedule).
			Validate(validateSchedule))
	}
	if strings.TrimSpace(in.prompt) == "" {
		fields = append(fields, huh.NewText().
			Title("Prompt").
			Value(&in.prompt).
			Validate(validatePrompt))
	}
	if in.description == "" {
		fields = append(fields, huh.NewInput().
			Title("Description").
			Description("Optional").
			Value(&in.description))
	}

	err := huh.NewForm(huh.NewGroup(fields...)).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("cancelled")
	}
	return err
}

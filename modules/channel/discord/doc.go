// Package discord implements the Discord channel for cronclaw.
//
// It owns the bot's gateway session and provides:
//
//   - channel.Transport for scheduled prompts and agent replies
//   - slash command registration and dispatch through command.Router
//   - text commands with a configurable prefix (default "!")
//   - mention-triggered agent turns, honoring each channel's mention-only setting
//
// The module registers itself as "channel.discord" via init() and follows
// the module lifecycle: Configure → Provision → Validate → Start → Stop.
package discord

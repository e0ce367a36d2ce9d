// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

const imessageChannelName = "imessage"

// CommandRunner runs an external program and returns its output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // binary path comes from validated config
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Message text and recipient are passed through argv, never interpolated
// into the script source.
const sendTextScript = `on run argv
	set recipientHandle to item 1 of argv
	set messageText to item 2 of argv
	tell application "Messages"
		set targetService to 1st account whose service type = %s
		set targetBuddy to participant recipientHandle of targetService
		send messageText to targetBuddy
	end tell
end run`

const sendFileScript = `on run argv
	set recipientHandle to item 1 of argv
	set attachmentPath to item 2 of argv
	set messageText to item 3 of argv
	tell application "Messages"
		set targetService to 1st account whose service type = %s
		set targetBuddy to participant recipientHandle of targetService
		send (POSIX file attachmentPath) to targetBuddy
		if messageText is not "" then
			send messageText to targetBuddy
		end if
	end tell
end run`

// IMessageChannel is the primary channel. It drives the local Messages
// application through osascript.
type IMessageChannel struct {
	runner  CommandRunner
	binary  string
	service string
	timeout time.Duration
	stat    func(string) (os.FileInfo, error)
}

// NewIMessageChannel creates the primary channel. A nil runner uses ExecRunner.
func NewIMessageChannel(cfg *config.PrimaryConfig, runner CommandRunner) *IMessageChannel {
	if runner == nil {
		runner = ExecRunner{}
	}
	c := &IMessageChannel{
		runner:  runner,
		binary:  cfg.OsascriptPath,
		service: cfg.Service,
		timeout: cfg.Timeout,
		stat:    os.Stat,
	}
	if c.binary == "" {
		c.binary = "/usr/bin/osascript"
	}
	if c.service == "" {
		c.service = "iMessage"
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	return c
}

// Kind returns models.ChannelPrimary.
func (c *IMessageChannel) Kind() models.ChannelKind {
	return models.ChannelPrimary
}

// Send runs the send script for req.
func (c *IMessageChannel) Send(ctx context.Context, req models.SendRequest) error {
	if strings.TrimSpace(req.RecipientID) == "" {
		return resilience.NewPermanent(imessageChannelName, resilience.CodeInvalidRecipient,
			errors.New("recipient is required"))
	}
	if req.Text == "" && !req.HasAttachment() {
		return resilience.NewPermanent(imessageChannelName, resilience.CodeInvalidRequest,
			errors.New("text or attachment is required"))
	}

	var script string
	argv := []string{req.RecipientID}
	if req.HasAttachment() {
		if _, err := c.stat(req.AttachmentRef); err != nil {
			return resilience.NewPermanent(imessageChannelName, resilience.CodeInvalidRequest,
				fmt.Errorf("attachment not readable: %w", err))
		}
		script = sendFileScript
		argv = append(argv, req.AttachmentRef, req.Text)
	} else {
		script = sendTextScript
		argv = append(argv, req.Text)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, stderr, err := c.runner.Run(runCtx, c.binary, scriptArgs(fmt.Sprintf(script, c.service), argv)...)
	if err != nil {
		if runCtx.Err() != nil {
			return resilience.NewTransient(imessageChannelName, resilience.CodeTimeout,
				fmt.Errorf("osascript did not finish: %w", runCtx.Err()))
		}
		return classifyScriptError(stderr, err)
	}
	return nil
}

// scriptArgs passes each script line as its own -e statement, followed by
// the run handler's argv.
func scriptArgs(script string, argv []string) []string {
	lines := strings.Split(script, "\n")
	args := make([]string, 0, 2*len(lines)+len(argv))
	for _, line := range lines {
		args = append(args, "-e", strings.TrimSpace(line))
	}
	return append(args, argv...)
}

// scriptErrorPatterns match osascript stderr against the AppleScript errors
// Messages raises. Error numbers keep their parentheses so "(-600)" does not
// also catch "(-6000)".
var scriptErrorPatterns = []struct {
	match     []string
	code      string
	permanent bool
}{
	{match: []string{"(-1728)", "Can’t get participant", "Can't get participant", "Can't get buddy", "Can’t get buddy"}, code: resilience.CodeInvalidRecipient, permanent: true},
	{match: []string{"(-1743)", "Not authorized to send Apple events"}, code: resilience.CodeAuthFailed, permanent: true},
	{match: []string{"(-2753)", "(-2741)", "syntax error"}, code: resilience.CodeInvalidRequest, permanent: true},
	{match: []string{"(-1712)", "timed out"}, code: resilience.CodeTimeout},
	{match: []string{"(-600)", "isn’t running", "isn't running"}, code: resilience.CodeConnectionFailed},
}

// classifyScriptError maps osascript stderr to a typed channel error.
// Unrecognized failures are transient so the retry budget bounds them.
func classifyScriptError(stderr []byte, err error) error {
	msg := strings.TrimSpace(string(stderr))
	cause := err
	if msg != "" {
		cause = fmt.Errorf("%s: %w", msg, err)
	}

	for _, p := range scriptErrorPatterns {
		for _, m := range p.match {
			if strings.Contains(msg, m) {
				if p.permanent {
					return resilience.NewPermanent(imessageChannelName, p.code, cause)
				}
				return resilience.NewTransient(imessageChannelName, p.code, cause)
			}
		}
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return resilience.NewPermanent(imessageChannelName, resilience.CodeScriptFailed, cause)
	}
	return resilience.NewTransient(imessageChannelName, resilience.CodeScriptFailed, cause)
}

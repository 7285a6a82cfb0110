// Package classifier turns free-form group chatter into validated
// registration intents and admin commands. The language model is an
// untrusted oracle: everything it returns is re-checked here before a
// caller sees it.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/openai"
)

const registrationSystemPrompt = `You classify Hebrew messages from a soccer group chat.
Each input line has the form "<userId>|<text>".
For every message decide exactly one of:
- "register": the sender wants to play this week. The message must contain the player's full name (first and last). Examples: "דוד כהן מגיע", "תרשום את יוסי לוי", "אני בפנים, דני אברהם".
- "cancel": the sender cancels their registration. Examples: "אני בחוץ", "מבטל", "לא אגיע".
- "cancel_waiting": the sender explicitly cancels only their waiting-list spot.
- "none": anything else (questions, jokes, logistics).
Rules:
- "name" is the full name mentioned in the message, or "" when none is present.
- "userId" is the userId of the line the intent came from.
- Never invent names. A register without a full name in the text is still "register" with name "".
Respond with a JSON object: {"actions":[{"type":"register|cancel|cancel_waiting|none","name":"...","userId":"..."}]}.`

const adminSystemPrompt = `You classify one Hebrew message sent by a group administrator into a single command.
Possible types:
- "register_self": add a named player. Needs a full name. Example: "תרשום את דוד כהן".
- "remove_self": remove a named player or the sender. Example: "תוריד את דוד כהן".
- "set_equipment": mark a named player as equipment carrier. Example: "דוד כהן מביא ציוד".
- "set_laundry": mark a named player as laundry duty. Example: "דוד כהן לוקח כביסה".
- "set_warmup_time": change warmup time. Example: "חימום ב20:15". "time" must be "HH:MM".
- "set_start_time": change start time. "time" must be "HH:MM".
- "show_roster": ask to see the current list. Example: "תראה רשימה".
- "add_admin": grant admin rights to a mentioned user. "name" is the person's name if present.
- "remove_admin": revoke admin rights from a mentioned user.
- "remove_player": remove a player by name, or by role when the message says to remove whoever has equipment ("ציוד") or laundry ("כביסה") duty. Set "role" to "equipment" or "laundry" in that case.
- "none": not a command.
Respond with a JSON object: {"type":"...","name":"...","time":"...","role":""}.`

// OpenAIClassifier implements classification over Chat Completions.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIClassifier creates the classifier.
func NewOpenAIClassifier(client *openai.Client, model string, log zerolog.Logger) *OpenAIClassifier {
	return &OpenAIClassifier{client: client, model: model, log: log}
}

type actionList struct {
	Actions []struct {
		Type   string `json:"type"`
		Name   string `json:"name"`
		UserID string `json:"userId"`
	} `json:"actions"`
}

// ClassifyRegistrations classifies a message batch into intents. Unknown
// action types and intents without a usable identity are dropped, not
// errored: the batch result is best effort.
func (c *OpenAIClassifier) ClassifyRegistrations(ctx context.Context, batch []domain.CollectedMessage) ([]domain.Intent, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for _, msg := range batch {
		fmt.Fprintf(&b, "%s|%s\n", domain.NormalizeJID(msg.SenderJID), strings.ReplaceAll(msg.Text, "\n", " "))
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: registrationSystemPrompt},
			{Role: openai.RoleUser, Content: b.String()},
		},
		Temperature:    0,
		MaxTokens:      1500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: registrations: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classifier: registrations: empty completion")
	}

	var parsed actionList
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("classifier: registrations: decode: %w", err)
	}

	senders := make(map[string]bool, len(batch))
	for _, msg := range batch {
		senders[domain.NormalizeJID(msg.SenderJID)] = true
	}

	var intents []domain.Intent
	for _, a := range parsed.Actions {
		kind := domain.IntentKind(a.Type)
		if kind != domain.IntentRegister && kind != domain.IntentCancel && kind != domain.IntentCancelWaiting {
			continue
		}
		userID := domain.NormalizeJID(strings.TrimSpace(a.UserID))
		// The oracle may only attribute intents to people who actually
		// wrote something in this batch.
		if userID != "" && !senders[userID] {
			c.log.Warn().Str("userId", userID).Msg("classifier: dropped intent for non-sender")
			continue
		}
		name := strings.TrimSpace(a.Name)
		if kind == domain.IntentRegister && name != "" && !domain.IsFullName(name) {
			name = ""
		}
		if userID == "" && name == "" {
			continue
		}
		intents = append(intents, domain.Intent{Kind: kind, Name: name, UserID: userID})
	}
	return intents, nil
}

type adminReply struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Time string `json:"time"`
	Role string `json:"role"`
}

// ClassifyAdminCommand classifies a single admin message. A nil command
// with nil error means "not a command".
func (c *OpenAIClassifier) ClassifyAdminCommand(ctx context.Context, text string, mentionedJIDs []string) (*domain.AdminCommand, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: adminSystemPrompt},
			{Role: openai.RoleUser, Content: text},
		},
		Temperature:    0,
		MaxTokens:      300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: admin command: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classifier: admin command: empty completion")
	}

	var parsed adminReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("classifier: admin command: decode: %w", err)
	}
	return validateAdminCommand(parsed, mentionedJIDs)
}

// validateAdminCommand enforces the per-command field requirements the
// oracle cannot be trusted with.
func validateAdminCommand(r adminReply, mentionedJIDs []string) (*domain.AdminCommand, error) {
	cmd := domain.AdminCommand{
		Type: domain.AdminCommandType(r.Type),
		Name: strings.TrimSpace(r.Name),
	}
	switch cmd.Type {
	case domain.CmdRegisterSelf, domain.CmdRemoveSelf, domain.CmdSetEquipment, domain.CmdSetLaundry:
		// Name may be empty for remove_self (sender is the target).
	case domain.CmdSetWarmupTime, domain.CmdSetStartTime:
		cmd.Time = domain.ParseClock(r.Time)
		if cmd.Time == "" {
			return nil, nil
		}
	case domain.CmdShowRoster:
	case domain.CmdAddAdmin, domain.CmdRemoveAdmin:
		if len(mentionedJIDs) == 0 {
			return nil, nil
		}
		cmd.JID = domain.NormalizeJID(mentionedJIDs[0])
	case domain.CmdRemovePlayer:
		switch domain.DutyRole(r.Role) {
		case domain.RoleEquipment, domain.RoleLaundry:
			cmd.Role = domain.DutyRole(r.Role)
		default:
			if cmd.Name == "" {
				return nil, nil
			}
		}
	default:
		return nil, nil
	}
	return &cmd, nil
}

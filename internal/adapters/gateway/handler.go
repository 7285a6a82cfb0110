// Package gateway receives inbound message events from the bridge sidecar
// and routes them: privileged chat traffic to the admin executor, player
// chat traffic to the collector, with the mention, sleep and override
// short-circuits applied before anything reaches a classifier.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/admin"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/registration"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/state"
)

// AdminWindow gates privileged commands by the weekly calendar.
type AdminWindow interface {
	AdminWindowOpen() bool
}

var (
	sleepRe      = regexp.MustCompile(`^(שינה|לישון|תלך\s*לישון|לך\s*לישון)`)
	wakeRe       = regexp.MustCompile(`^(התעורר|תתעורר|קום|תקום)`)
	mentionTagRe = regexp.MustCompile(`@\d+`)
	numberedRe   = regexp.MustCompile(`(?m)^\s*\d{1,2}\.`)
)

// InboundEvent is one message event delivered by the bridge.
type InboundEvent struct {
	MsgID          string   `json:"msgId"`
	Chat           string   `json:"chat"`
	SenderJID      string   `json:"senderJid"`
	Text           string   `json:"text"`
	MentionedJIDs  []string `json:"mentionedJids"`
	IsSelfAuthored bool     `json:"isSelfAuthored"`
}

// Handler routes bridge events.
type Handler struct {
	reg        *registration.Service
	admin      *admin.Service
	state      *state.Service
	window     AdminWindow
	classifier domain.Classifier
	log        zerolog.Logger

	botJID         string
	adminChannel   string
	playersChannel string
}

// NewHandler creates the gateway handler.
func NewHandler(reg *registration.Service, adm *admin.Service, st *state.Service, window AdminWindow, classifier domain.Classifier, log zerolog.Logger, botJID, adminChannel, playersChannel string) *Handler {
	return &Handler{
		reg:            reg,
		admin:          adm,
		state:          st,
		window:         window,
		classifier:     classifier,
		log:            log,
		botJID:         domain.NormalizeJID(botJID),
		adminChannel:   adminChannel,
		playersChannel: playersChannel,
	}
}

// Router returns the bridge webhook routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/bridge/message", h.handleMessage)
	r.Post("/bridge/edit", h.handleEdit)
	r.Post("/bridge/delete", h.handleDelete)
	return r
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var ev InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)

	if ev.IsSelfAuthored || strings.HasSuffix(ev.Chat, "@broadcast") {
		return
	}

	ctx := r.Context()
	switch ev.Chat {
	case h.adminChannel:
		h.routeAdmin(ctx, ev)
	case h.playersChannel:
		h.routePlayers(ctx, ev)
	}
}

func (h *Handler) routeAdmin(ctx context.Context, ev InboundEvent) {
	if !h.botMentioned(ev) {
		return
	}
	sender := domain.NormalizeJID(ev.SenderJID)
	isAdmin, err := h.state.IsAdmin(ctx, sender)
	if err != nil {
		h.log.Error().Err(err).Msg("gateway: admin lookup failed")
		return
	}
	if !isAdmin {
		h.log.Warn().Str("sender", sender).Msg("gateway: non-admin command attempt dropped")
		return
	}
	if !h.window.AdminWindowOpen() {
		h.log.Info().Str("sender", sender).Msg("gateway: command outside admin window dropped")
		return
	}

	text := strings.TrimSpace(mentionTagRe.ReplaceAllString(ev.Text, ""))

	if looksLikeOverride(ev.Text) {
		applied, err := h.admin.OverrideFromText(ctx, ev.Text)
		if err != nil {
			h.log.Error().Err(err).Msg("gateway: roster override failed")
		} else if applied {
			h.log.Info().Str("sender", sender).Msg("gateway: roster override applied")
		}
		return
	}

	cmd, err := h.classifier.ClassifyAdminCommand(ctx, text, otherMentions(ev, h.botJID))
	if err != nil {
		h.log.Error().Err(err).Msg("gateway: admin classification failed")
		return
	}
	if cmd == nil {
		return
	}
	if err := h.admin.Execute(ctx, ev.Chat, sender, *cmd); err != nil {
		h.log.Error().Err(err).Str("type", string(cmd.Type)).Msg("gateway: admin command failed")
	}
}

func (h *Handler) routePlayers(ctx context.Context, ev InboundEvent) {
	sender := domain.NormalizeJID(ev.SenderJID)

	if h.botMentioned(ev) {
		isAdmin, err := h.state.IsAdmin(ctx, sender)
		if err != nil {
			h.log.Error().Err(err).Msg("gateway: admin lookup failed")
			return
		}
		if !isAdmin {
			return
		}
		text := strings.TrimSpace(mentionTagRe.ReplaceAllString(ev.Text, ""))
		switch {
		case sleepRe.MatchString(text):
			if err := h.state.SaveBotControl(ctx, domain.BotControl{Sleeping: true}); err != nil {
				h.log.Error().Err(err).Msg("gateway: sleep failed")
				return
			}
			h.reg.StopDebounce()
			h.log.Info().Str("sender", sender).Msg("gateway: bot put to sleep")
		case wakeRe.MatchString(text):
			if err := h.state.SaveBotControl(ctx, domain.BotControl{Sleeping: false}); err != nil {
				h.log.Error().Err(err).Msg("gateway: wake failed")
				return
			}
			h.log.Info().Str("sender", sender).Msg("gateway: bot woken up")
		case looksLikeOverride(ev.Text):
			if _, err := h.admin.OverrideFromText(ctx, ev.Text); err != nil {
				h.log.Error().Err(err).Msg("gateway: roster override failed")
			}
		}
		// Other mentions of the bot in the player chat are not collected.
		return
	}

	ctl, err := h.state.BotControl(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("gateway: bot control load failed")
		return
	}
	if ctl.Sleeping {
		return
	}
	ros, err := h.state.Roster(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("gateway: roster load failed")
		return
	}
	if !ros.RegistrationOpen {
		return
	}
	if err := h.reg.Collect(ctx, ev.MsgID, ev.SenderJID, ev.Text); err != nil {
		h.log.Error().Err(err).Msg("gateway: collect failed")
	}
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var ev InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	if ev.Chat != h.playersChannel {
		return
	}
	if err := h.reg.EditMessage(r.Context(), ev.MsgID, ev.Text); err != nil {
		h.log.Error().Err(err).Msg("gateway: edit failed")
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var ev InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	if ev.Chat != h.playersChannel {
		return
	}
	if err := h.reg.DeleteMessage(r.Context(), ev.MsgID); err != nil {
		h.log.Error().Err(err).Msg("gateway: delete failed")
	}
}

func (h *Handler) botMentioned(ev InboundEvent) bool {
	for _, jid := range ev.MentionedJIDs {
		if domain.NormalizeJID(jid) == h.botJID {
			return true
		}
	}
	return false
}

// otherMentions returns the mentioned JIDs excluding the bot itself, for
// commands that target a person.
func otherMentions(ev InboundEvent, botJID string) []string {
	var out []string
	for _, jid := range ev.MentionedJIDs {
		if domain.NormalizeJID(jid) != botJID {
			out = append(out, jid)
		}
	}
	return out
}

// looksLikeOverride reports whether a message is a pasted full roster:
// at least three numbered lines.
func looksLikeOverride(text string) bool {
	return len(numberedRe.FindAllString(text, 4)) >= 3
}

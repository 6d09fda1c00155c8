package dispatch

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/voxbridge/internal/bot"
	"github.com/MrWong99/voxbridge/internal/messaging"
	"github.com/MrWong99/voxbridge/internal/messaging/twilio"
	"github.com/MrWong99/voxbridge/internal/observe"
)

const (
	maxWebhookBody = 1 << 20
	emptyTwiML     = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// Register mounts POST /webhook on mux.
func (d *Dispatcher) Register(mux *http.ServeMux) {
	mux.Handle("POST /webhook", d.WebhookHandler())
}

// WebhookHandler parses an inbound message form, enqueues it and answers
// with an empty TwiML document. A full queue answers 503 so the vendor
// retries later.
func (d *Dispatcher) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := observe.Logger(ctx)

		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		if d.cfg.ValidateSignature && d.cfg.AuthToken != "" {
			signed := strings.TrimRight(d.cfg.PublicBaseURL, "/") + r.URL.RequestURI()
			if !twilio.ValidSignature(d.cfg.AuthToken, signed, r.PostForm, r.Header.Get(twilio.SignatureHeader)) {
				log.Warn("dispatch: rejected webhook with invalid signature", "remote", r.RemoteAddr)
				http.Error(w, "invalid signature", http.StatusForbidden)
				return
			}
		}

		msg, err := parseInbound(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		err = d.Enqueue(ctx, Task{
			Msg:           msg,
			CorrelationID: observe.CorrelationID(ctx),
			Received:      time.Now(),
		})
		if err != nil {
			observe.Logger(observe.WithContact(ctx, msg.ContactID)).Warn("dispatch: message not accepted", "err", err)
			d.metrics.RecordMessage(ctx, msg.Kind(), "rejected")
			http.Error(w, "busy, retry later", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(emptyTwiML))
	})
}

// parseInbound maps the webhook form fields (From, Body, NumMedia,
// MediaUrl0, MediaContentType0) to a bot message. Only the first media item
// is used.
func parseInbound(r *http.Request) (bot.Message, error) {
	from := strings.TrimSpace(r.PostFormValue("From"))
	if from == "" {
		return bot.Message{}, errors.New("missing From")
	}
	msg := bot.Message{
		ContactID: messaging.NormalizeAddress(channelOf(from), from),
		Text:      r.PostFormValue("Body"),
	}
	n, _ := strconv.Atoi(r.PostFormValue("NumMedia"))
	if u := strings.TrimSpace(r.PostFormValue("MediaUrl0")); n > 0 && u != "" {
		msg.Attachment = &bot.Attachment{
			URL:         u,
			ContentType: r.PostFormValue("MediaContentType0"),
		}
	}
	return msg, nil
}

// channelOf returns the address prefix of from, defaulting to WhatsApp.
func channelOf(from string) string {
	if i := strings.IndexByte(from, ':'); i > 0 {
		return strings.ToLower(from[:i])
	}
	return messaging.ChannelWhatsApp
}

package httpadapter

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
	"github.com/kirillkom/tutorial-pipeline/internal/core/usecase"
)

const maxFormBody = 32 << 10

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// receiveMessage accepts SMS and WhatsApp webhooks. The reply is TwiML so
// the sender gets an acknowledgement on the same channel.
func (rt *Router) receiveMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
		return
	}

	if rt.twilioAuthToken != "" {
		signature := r.Header.Get(twilioSignatureHeader)
		if !validTwilioSignature(rt.twilioAuthToken, requestURL(r, rt.publicBaseURL), r.PostForm, signature) {
			slog.Warn("webhook_signature_rejected",
				"request_id", requestIDFromContext(r.Context()),
				"has_signature", signature != "",
			)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
			return
		}
	}

	if _, ok := r.PostForm["Body"]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: Body is required"})
		return
	}

	from := strings.TrimSpace(r.PostForm.Get("From"))
	channel := domain.ChannelSMS
	if strings.HasPrefix(strings.ToLower(from), "whatsapp:") {
		channel = domain.ChannelWhatsApp
	}

	link, ok := usecase.ExtractFirstURL(r.PostForm.Get("Body"))
	if !ok {
		writeTwiML(w, "Send a link to an article, video, post or PDF and we will turn it into a tutorial.")
		return
	}

	sub, err := rt.svc.Ingestor.Submit(r.Context(), ports.SubmitRequest{
		URL:     link,
		Channel: channel,
		Sender:  from,
		HotNews: isHotNews(r.PostForm.Get("Body")),
	})
	if err != nil && sub == nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			writeTwiML(w, "That link does not look valid. Please send a full http(s) URL.")
			return
		}
		writeError(w, r, err)
		return
	}
	if err != nil {
		slog.Warn("submission_queue_deferred", "submission_id", sub.ID, "error", err)
	}
	rt.recordSubmission(sub)
	writeTwiML(w, "Got it! Your "+string(sub.SourceType)+" is being turned into a tutorial.")
}

// isHotNews reports whether the message asks for timely news framing.
func isHotNews(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "#hot") || strings.Contains(lower, "#news")
}

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}

package recorder

import (
	"log/slog"

	"github.com/john/chattui/internal/irc"
	"github.com/john/chattui/internal/message"
	"github.com/john/chattui/internal/metrics"
	"github.com/john/chattui/internal/scrollback"
)

// Recorder turns protocol messages into chat lines in the scrollback. It
// runs on the session goroutine and never blocks.
type Recorder struct {
	classifier *message.Classifier
	buffer     *scrollback.Buffer
	metrics    *metrics.Metrics
	log        *slog.Logger

	// OnAppend, when set, is called after each line is stored.
	OnAppend func(line message.Line)
}

// New creates a recorder writing into buffer.
func New(classifier *message.Classifier, buffer *scrollback.Buffer, m *metrics.Metrics, log *slog.Logger) *Recorder {
	if m == nil {
		m = metrics.Discard()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := &Recorder{
		classifier: classifier,
		buffer:     buffer,
		metrics:    m,
		log:        log,
	}
	buffer.OnEvict = func(n int) {
		r.metrics.Evictions.Add(float64(n))
	}
	return r
}

// HandleMessage records msg if it is a chat line for the channel.
func (r *Recorder) HandleMessage(msg irc.Message) {
	draft, ok := r.classifier.Classify(msg)
	if !ok {
		r.log.Debug("Ignoring message", slog.String("command", msg.Command))
		return
	}

	line := r.buffer.Append(draft)
	r.metrics.Messages.Inc()
	r.metrics.ScrollbackLines.Set(float64(r.buffer.Snapshot().Len()))

	if r.OnAppend != nil {
		r.OnAppend(line)
	}
}

package main

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
)

// topicHandler wraps an slog.Handler and filters records by a "topic" attribute.
// Records without a topic attribute always pass through (startup messages, errors).
// Records with a topic only pass if that topic is enabled. The enabled set
// can be swapped while loggers derived from the handler are in use.
type topicHandler struct {
	inner  slog.Handler
	topics *atomic.Pointer[map[string]bool]
	topic  string // set when WithAttrs includes a "topic" key
}

func newTopicHandler(inner slog.Handler, topics map[string]bool) *topicHandler {
	h := &topicHandler{inner: inner, topics: new(atomic.Pointer[map[string]bool])}
	h.setTopics(topics)
	return h
}

func (h *topicHandler) setTopics(topics map[string]bool) {
	h.topics.Store(&topics)
}

func (h *topicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *topicHandler) Handle(ctx context.Context, r slog.Record) error {
	topics := *h.topics.Load()
	if topics["all"] {
		return h.inner.Handle(ctx, r)
	}
	topic := h.topic
	if topic == "" {
		// Check record-level attrs as fallback.
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "topic" {
				topic = a.Value.String()
				return false
			}
			return true
		})
	}
	if topic != "" && !topics[topic] {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *topicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	topic := h.topic
	for _, a := range attrs {
		if a.Key == "topic" {
			topic = a.Value.String()
		}
	}
	return &topicHandler{inner: h.inner.WithAttrs(attrs), topics: h.topics, topic: topic}
}

func (h *topicHandler) WithGroup(name string) slog.Handler {
	return &topicHandler{inner: h.inner.WithGroup(name), topics: h.topics, topic: h.topic}
}

// parseTopics merges the -log flag, the -verbose flag and the configured
// topics into one enabled set.
func parseTopics(verbose bool, flagValue string, configured []string) map[string]bool {
	topics := make(map[string]bool)
	if verbose {
		topics["all"] = true
	}
	if flagValue != "" {
		for _, t := range strings.Split(flagValue, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics[t] = true
			}
		}
	}
	for _, t := range configured {
		topics[t] = true
	}
	return topics
}

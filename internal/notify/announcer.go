package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/logging"
)

// Announcer sends the difference between consecutive digests: symbols that
// appeared and symbols that disappeared, with how long they lasted. It is the
// publisher behind the notifier's dispatcher.
type Announcer struct {
	sender Sender
	memory cache.NotifiedCache
	now    func() time.Time

	mu   sync.Mutex
	prev map[string]string
}

// NewAnnouncer builds an Announcer. A nil memory keeps state in process only.
func NewAnnouncer(sender Sender, memory cache.NotifiedCache, now func() time.Time) *Announcer {
	if memory == nil {
		memory = cache.NewMemory()
	}
	if now == nil {
		now = time.Now
	}
	return &Announcer{sender: sender, memory: memory, now: now, prev: map[string]string{}}
}

// Publish announces what changed between the previous digest and entries.
// The previous digest only advances after a successful send.
func (a *Announcer) Publish(ctx context.Context, entries map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	var added, lost []string
	remembered := make(map[string]cache.NotifiedEntry)

	for _, symbol := range sortedKeys(entries) {
		if _, ok := a.prev[symbol]; ok {
			continue
		}
		digest := hashutil.HashStrings(symbol, entries[symbol])
		entry, ok, err := a.memory.Get(ctx, symbol)
		if err != nil {
			logging.Warnf("[notify] cache get %s: %v", symbol, err)
		}
		if ok && entry.Digest == digest {
			// announced before a restart; adopt it silently
			logging.Debugf("[notify] %s already announced at %s", symbol, entry.SentAt.Format(time.RFC3339))
			remembered[symbol] = *entry
			continue
		}
		firstSeen := now
		if ok && !entry.FirstSeen.IsZero() {
			firstSeen = entry.FirstSeen
		}
		remembered[symbol] = cache.NotifiedEntry{Digest: digest, FirstSeen: firstSeen, SentAt: now}
		added = append(added, symbol)
	}

	lasted := make(map[string]time.Duration)
	for _, symbol := range sortedKeys(a.prev) {
		if _, ok := entries[symbol]; ok {
			continue
		}
		lost = append(lost, symbol)
		if entry, ok, err := a.memory.Get(ctx, symbol); err == nil && ok && !entry.FirstSeen.IsZero() {
			lasted[symbol] = now.Sub(entry.FirstSeen)
		}
	}

	if len(added) > 0 || len(lost) > 0 {
		text := a.compose(entries, added, lost, lasted)
		if err := a.sender.Send(ctx, text); err != nil {
			return fmt.Errorf("%s: %w", a.sender.Name(), err)
		}
		logging.Infof("[notify] sent via %s: %d new, %d lost", a.sender.Name(), len(added), len(lost))
	} else {
		logging.Debugf("[notify] nothing to send")
	}

	for symbol, entry := range remembered {
		if err := a.memory.Set(ctx, symbol, entry); err != nil {
			logging.Warnf("[notify] cache set %s: %v", symbol, err)
		}
	}
	for _, symbol := range lost {
		if err := a.memory.Delete(ctx, symbol); err != nil {
			logging.Warnf("[notify] cache delete %s: %v", symbol, err)
		}
	}

	next := make(map[string]string, len(entries))
	for k, v := range entries {
		next[k] = v
	}
	a.prev = next
	return nil
}

func (a *Announcer) compose(entries map[string]string, added, lost []string, lasted map[string]time.Duration) string {
	var b strings.Builder
	if len(added) > 0 {
		b.WriteString("New entries:\n")
		for _, symbol := range added {
			b.WriteString(entries[symbol])
			b.WriteString("\n")
		}
	}
	if len(lost) > 0 {
		b.WriteString("Lost entries:\n")
		for _, symbol := range lost {
			b.WriteString(a.prev[symbol])
			b.WriteString("\n")
		}
		for _, symbol := range lost {
			if d, ok := lasted[symbol]; ok {
				fmt.Fprintf(&b, "%s lasted for %.3g minutes\n", symbol, d.Minutes())
			}
		}
	}
	return b.String()
}

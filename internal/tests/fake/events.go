package fake

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/internal/storage"
)

// Published is one event captured by Events.
type Published struct {
	Channel string
	Event   mq.Event
}

// Events records every published event.
type Events struct {
	mu     sync.Mutex
	events []Published
}

func (e *Events) Publish(ctx context.Context, channel string, evt mq.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, Published{Channel: channel, Event: evt})
}

func (e *Events) All() []Published {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Published(nil), e.events...)
}

// Types lists the event types in publish order.
func (e *Events) Types() []string {
	var types []string
	for _, p := range e.All() {
		types = append(types, p.Event.Type)
	}
	return types
}

// Objects is an in-memory bucket.
type Objects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func NewObjects() *Objects {
	return &Objects{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (o *Objects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = data
	o.types[key] = contentType
	return nil
}

func (o *Objects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *Objects) Delete(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(o.objects, key)
	delete(o.types, key)
	return nil
}

func (o *Objects) ContentType(key string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.types[key]
}

func (o *Objects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.objects))
	for key := range o.objects {
		keys = append(keys, key)
	}
	return keys
}

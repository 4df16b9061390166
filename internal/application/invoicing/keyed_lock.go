package invoicing

import (
	"context"
	"sync"
)

// keyedLock serializa el tramo reservar-número → enviar por clave
// (punto de venta, tipo de comprobante). Claves distintas avanzan en paralelo.
// La adquisición respeta el contexto: un caller puede cancelar mientras espera
// el lock, nunca después de adquirirlo.
type keyedLock struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{slots: make(map[string]chan struct{})}
}

func (l *keyedLock) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[key] = s
	}
	return s
}

// acquire toma el lock de la clave o devuelve el error del contexto si el
// caller cancela durante la espera.
func (l *keyedLock) acquire(ctx context.Context, key string) error {
	select {
	case l.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *keyedLock) release(key string) {
	<-l.slot(key)
}

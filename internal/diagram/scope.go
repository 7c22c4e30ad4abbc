package diagram

import "context"

// WithSession opens a session, runs fn and always releases the session
// afterwards: on normal return, on error, on panic and after cancellation.
// A session finalized inside fn keeps its output file; any other session is
// discarded. The session is returned so callers can inspect the outcome.
func WithSession(ctx context.Context, store *Store, fn func(ctx context.Context, s *Session) error) (*Session, error) {
	s, err := store.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Release()

	if err := ctx.Err(); err != nil {
		return s, err
	}
	return s, fn(ctx, s)
}

package middlewares

import (
	"bytes"
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/dkotenko/finance-tracker/internal/logger"
)

// TxMiddleware wraps an HTTP handler with a database transaction, so a
// mutating request either commits all of its writes or none of them. The
// handler's response is buffered and only flushed after a successful commit:
// a commit failure yields a 500 instead of the handler's success response.
// Callbacks registered with OnCommit run after the commit and are dropped
// when the transaction does not commit.
func TxMiddleware(db *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tx, err := db.Beginx()
			if err != nil {
				logger.Log.Errorw("failed to begin transaction", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			defer func() {
				if rec := recover(); rec != nil {
					tx.Rollback()
					panic(rec)
				}
			}()

			state := &txState{tx: tx}
			r = r.WithContext(setTxToContext(r.Context(), state))

			buffered := newTxResponseWriter()
			next.ServeHTTP(buffered, r)

			if err := tx.Commit(); err != nil {
				logger.Log.Errorw("failed to commit transaction", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			for _, fn := range state.onCommit {
				fn()
			}
			buffered.flush(w)
		})
	}
}

// txState carries the request's transaction and the callbacks scheduled to
// run once it has committed.
type txState struct {
	tx       *sqlx.Tx
	onCommit []func()
}

// contextKey is an unexported type for keys in context
type contextKey struct{}

var txKey = contextKey{}

// setTxToContext stores the transaction state in the context
func setTxToContext(ctx context.Context, state *txState) context.Context {
	return context.WithValue(ctx, txKey, state)
}

func getTxState(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey).(*txState)
	return state
}

// GetTxFromContext retrieves the transaction from the context. Returns nil if not present.
func GetTxFromContext(ctx context.Context) *sqlx.Tx {
	if state := getTxState(ctx); state != nil {
		return state.tx
	}
	return nil
}

// OnCommit schedules fn to run after the request's transaction has
// committed. Outside a transaction fn runs immediately.
func OnCommit(ctx context.Context, fn func()) {
	state := getTxState(ctx)
	if state == nil {
		fn()
		return
	}
	state.onCommit = append(state.onCommit, fn)
}

// txResponseWriter buffers the handler's response so nothing reaches the
// client before the transaction has committed.
type txResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newTxResponseWriter() *txResponseWriter {
	return &txResponseWriter{header: make(http.Header)}
}

func (w *txResponseWriter) Header() http.Header {
	return w.header
}

func (w *txResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *txResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

// flush replays the buffered response onto the real writer.
func (w *txResponseWriter) flush(dst http.ResponseWriter) {
	for key, values := range w.header {
		for _, value := range values {
			dst.Header().Add(key, value)
		}
	}
	if w.status != 0 {
		dst.WriteHeader(w.status)
	}
	dst.Write(w.body.Bytes())
}

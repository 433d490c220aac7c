/*
Package submission implements the policy-submission saga:

  Idle → Validating → UploadingDocument → CreatingRecord → Succeeded
                                                         ↘ Failed(reason)

Each step that leaves a side effect registers a compensating action; when a
later step fails, compensations run in reverse before the failure is
reported. The tradeoff is explicit and best-effort: upload-then-insert
means a blob can transiently exist without a referencing record, the
compensating delete closes that window, and a failed delete is logged
once, never retried.

FAIL-CLOSED GUARDS:
  A submission with no authenticated owner or no attached document fails
  before any storage or database call is made.

EXTRA ATTACHMENTS:
  Additional files ride along after the record exists. They upload
  concurrently and are awaited jointly; failures are filtered out and the
  record keeps whichever attachments succeeded. No all-or-nothing
  guarantee, by the same best-effort policy.
*/
package submission

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coverclarity/coverage-engine/policy"
	"github.com/coverclarity/coverage-engine/storage"
)

// =============================================================================
// STATES
// =============================================================================

type State string

const (
	StateIdle              State = "idle"
	StateValidating        State = "validating"
	StateUploadingDocument State = "uploading_document"
	StateCreatingRecord    State = "creating_record"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// File is one uploaded file, fully read into memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the terminal outcome of one submission attempt. Path records
// every state the attempt passed through, in order.
type Result struct {
	State       State
	Path        []State
	Record      *policy.Record
	Form        policy.Form
	Err         error
	FieldErrors map[string]string
}

// Succeeded reports whether the attempt reached the Succeeded state.
func (r Result) Succeeded() bool { return r.State == StateSucceeded }

// =============================================================================
// WORKFLOW
// =============================================================================

// Workflow runs submission attempts. OnSuccess, when set, is invoked with
// the created record after the attempt succeeds (the dashboard uses it to
// refresh its list).
type Workflow struct {
	Blobs     storage.BlobStore
	Policies  policy.Store
	OnSuccess func(policy.Record)

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// New creates a workflow over the given blob and record stores.
func New(blobs storage.BlobStore, policies policy.Store) *Workflow {
	return &Workflow{Blobs: blobs, Policies: policies, Now: time.Now}
}

// step is one unit of the saga: a name, an action, and the compensation to
// run if a later step fails.
type step struct {
	name       string
	state      State
	run        func(ctx context.Context) error
	compensate func(ctx context.Context)
}

// Submit runs one submission attempt to a terminal state. It never panics:
// anything unexpected is normalized into Failed with an UnexpectedError.
func (w *Workflow) Submit(ctx context.Context, owner policy.OwnerID, form policy.Form, document *File, attachments []File) (res Result) {
	res = Result{State: StateIdle, Path: []State{StateIdle}, Form: form}

	defer func() {
		if rec := recover(); rec != nil {
			res = w.fail(res, &policy.UnexpectedError{Err: fmt.Errorf("panic: %v", rec)})
		}
	}()

	// Fail-closed guards, before any network or storage call.
	res = w.enter(res, StateValidating)
	if owner == "" {
		return w.fail(res, policy.ErrNotAuthenticated)
	}
	if document == nil || len(document.Data) == 0 {
		return w.fail(res, policy.ErrDocumentRequired)
	}

	vr := policy.Validate(form)
	if !vr.OK {
		failed := w.fail(res, &policy.ValidationError{Fields: vr.Errors})
		failed.FieldErrors = vr.Errors
		return failed
	}

	var (
		key string
		rec policy.Record
	)

	steps := []step{
		{
			name:  "upload document",
			state: StateUploadingDocument,
			run: func(ctx context.Context) error {
				key = storage.BuildKey(string(owner), document.Name)
				if err := w.Blobs.Put(ctx, key, document.Data, document.ContentType); err != nil {
					return &policy.UploadError{Key: key, Err: err}
				}
				return nil
			},
			compensate: func(ctx context.Context) {
				// Best effort: an orphaned blob is logged, not retried.
				if err := w.Blobs.Remove(ctx, key); err != nil {
					log.Printf("submission: orphaned blob %s: compensating delete failed: %v", key, err)
				}
			},
		},
		{
			name:  "create record",
			state: StateCreatingRecord,
			run: func(ctx context.Context) error {
				rec = vr.Fields.Record(owner, w.Now().UTC())
				rec.Document = &policy.DocumentRef{
					URL:         w.Blobs.PublicURL(key),
					Filename:    document.Name,
					Size:        int64(len(document.Data)),
					ContentType: document.ContentType,
				}
				if err := w.Policies.Save(ctx, rec); err != nil {
					return &policy.PersistenceError{Err: err}
				}
				return nil
			},
		},
	}

	var done []step
	for _, s := range steps {
		res = w.enter(res, s.state)
		if err := s.run(ctx); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				if done[i].compensate != nil {
					done[i].compensate(ctx)
				}
			}
			return w.fail(res, err)
		}
		done = append(done, s)
	}

	w.uploadAttachments(ctx, &rec, attachments)

	res.State = StateSucceeded
	res.Path = append(res.Path, StateSucceeded)
	res.Record = &rec
	res.Form = policy.DefaultForm()

	if w.OnSuccess != nil {
		w.OnSuccess(rec)
	}
	return res
}

// uploadAttachments uploads extra files concurrently and keeps whichever
// succeeded. Runs only after the record exists; failures never fail the
// submission.
func (w *Workflow) uploadAttachments(ctx context.Context, rec *policy.Record, files []File) {
	if len(files) == 0 {
		return
	}

	refs := make([]*policy.DocumentRef, len(files))
	g := new(errgroup.Group)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			key := storage.BuildKey(string(rec.OwnerID), f.Name)
			if err := w.Blobs.Put(ctx, key, f.Data, f.ContentType); err != nil {
				log.Printf("submission: attachment %q upload failed: %v", f.Name, err)
				return nil // partial failure is tolerated
			}
			refs[i] = &policy.DocumentRef{
				URL:         w.Blobs.PublicURL(key),
				Filename:    f.Name,
				Size:        int64(len(f.Data)),
				ContentType: f.ContentType,
			}
			return nil
		})
	}
	g.Wait()

	for _, ref := range refs {
		if ref != nil {
			rec.Attachments = append(rec.Attachments, *ref)
		}
	}
	if len(rec.Attachments) == 0 {
		return
	}

	if err := w.Policies.Save(ctx, *rec); err != nil {
		log.Printf("submission: saving attachments on %s failed: %v", rec.ID, err)
	}
}

func (w *Workflow) enter(res Result, s State) Result {
	res.State = s
	res.Path = append(res.Path, s)
	return res
}

func (w *Workflow) fail(res Result, err error) Result {
	res.State = StateFailed
	res.Path = append(res.Path, StateFailed)
	res.Err = err
	return res
}

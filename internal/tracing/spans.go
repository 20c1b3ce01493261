package tracing

// Span names.
const (
	SpanCommit = "txn.commit"
	SpanUndo   = "undo.history.undo"
	SpanRedo   = "undo.history.redo"
	SpanSave   = "store.save"
	SpanLoad   = "store.load"
)

// Span attribute keys.
const (
	AttrOperationLabel = "operation.label"
	AttrCommitDepth    = "txn.depth"
	AttrCommitAdded    = "txn.added"
	AttrCommitUpdated  = "txn.updated"
	AttrCommitDeleted  = "txn.deleted"
	AttrRecordCount    = "store.records"
	AttrDocumentPath   = "document.path"
)

// Span event names.
const (
	EventPhaseInserts    = "phase.inserts"
	EventPhaseReferences = "phase.references"
	EventPhaseUpdates    = "phase.updates"
	EventPhaseDeletes    = "phase.deletes"
	EventRollback        = "rollback"
)

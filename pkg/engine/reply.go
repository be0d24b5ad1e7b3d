package engine

// Reply kind constants, drawn from the fixed vocabulary in spec.md §6. The
// SQL front-end (sql.go) and the mutator (mutator.go) only ever set
// runtime.Reply.Kind to one of these strings.
const (
	ReplyOK    = "ok"
	ReplyCOne  = "cone"  // 1 row affected
	ReplyCZero = "czero" // 0 rows affected

	ReplySingleRow = "singlerow" // prefix before a row payload
	ReplyNullBulk  = "nullbulk"  // no row matched

	ReplyInsertOverwrite = "insert_ovrwrt"
	ReplyInsertColumn    = "insertcolumn"
	ReplyInsertLRU       = "insert_lru"
	ReplyUpdateLRU       = "update_lru"
	ReplyInsertReplaceUpdate = "insert_replace_update"

	ReplyUpdatePKOverwrite       = "update_pk_overwrite"
	ReplyUpdatePKRangeQuery      = "update_pk_range_query"
	ReplyRangeQueryIndexNotFound = "rangequery_index_not_found"

	ReplyConstraintViolation = "constraint_viol"
	ReplyUIntPKBig           = "uint_pkbig"
	ReplyPartInsertOther     = "part_insert_other"

	ReplySyntaxError = "syntax_error"

	// ReplyExplainPlan is returned by EXPLAIN on the single-point path
	// instead of executing the re-dispatched command (spec.md §4.6): there's
	// no separate plan object to show here, so the reply just names the
	// command and table the range executor's EXPLAIN would otherwise run.
	ReplyExplainPlan = "explain_single_point"
)

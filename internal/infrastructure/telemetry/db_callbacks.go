package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type contextKey string

const queryStartTimeKey contextKey = "db_query_start_time"

// gormOperations are the callback chains instrumented on every GORM instance
var gormOperations = []string{"create", "query", "update", "delete", "row", "raw"}

// otelgormCallback names the callback otelgorm registers for stage
// ("before" or "after") of a gorm operation. Queries are registered as
// "select".
func otelgormCallback(stage, op string) string {
	if op == "query" {
		op = "select"
	}
	return "otel:" + stage + ":" + op
}

// registerAround installs before and after callbacks named "<prefix>:<op>"
// around each built-in "gorm:<op>" callback. With insideSpan the pair is
// nested within otelgorm's: the before callback runs ahead of the span start
// and the after callback while the statement span is still recording.
func registerAround(db *gorm.DB, prefix string, insideSpan bool, before, after func(*gorm.DB, string)) error {
	for _, op := range gormOperations {
		op := op
		var err error
		gormName := "gorm:" + op
		beforeAnchor, afterAnchor := gormName, ""
		if insideSpan {
			beforeAnchor = otelgormCallback("before", op)
			afterAnchor = otelgormCallback("after", op)
		}
		beforeFn := func(tx *gorm.DB) { before(tx, op) }
		afterFn := func(tx *gorm.DB) { after(tx, op) }

		switch op {
		case "create":
			if err = db.Callback().Create().Before(beforeAnchor).Register(prefix+":before_"+op, beforeFn); err == nil {
				err = db.Callback().Create().After(gormName).Before(afterAnchor).Register(prefix+":after_"+op, afterFn)
			}
		case "query":
			if err = db.Callback().Query().Before(beforeAnchor).Register(prefix+":before_"+op, beforeFn); err == nil {
				err = db.Callback().Query().After(gormName).Before(afterAnchor).Register(prefix+":after_"+op, afterFn)
			}
		case "update":
			if err = db.Callback().Update().Before(beforeAnchor).Register(prefix+":before_"+op, beforeFn); err == nil {
				err = db.Callback().Update().After(gormName).Before(afterAnchor).Register(prefix+":after_"+op, afterFn)
			}
		case "delete":
			if err = db.Callback().Delete().Before(beforeAnchor).Register(prefix+":before_"+op, beforeFn); err == nil {
				err = db.Callback().Delete().After(gormName).Before(afterAnchor).Register(prefix+":after_"+op, afterFn)
			}
		case "row":
			if err = db.Callback().Row().Before(beforeAnchor).Register(prefix+":before_"+op, beforeFn); err == nil {
				err = db.Callback().Row().After(gormName).Before(afterAnchor).Register(prefix+":after_"+op, afterFn)
			}
		case "raw":
			if err = db.Callback().Raw().Before(beforeAnchor).Register(prefix+":before_"+op, beforeFn); err == nil {
				err = db.Callback().Raw().After(gormName).Before(afterAnchor).Register(prefix+":after_"+op, afterFn)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// markQueryStart stores the start time in the statement context
func markQueryStart(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tx.Statement.Context = context.WithValue(ctx, queryStartTimeKey, time.Now())
}

func queryElapsed(tx *gorm.DB) (time.Duration, bool) {
	if tx.Statement.Context == nil {
		return 0, false
	}
	start, ok := tx.Statement.Context.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

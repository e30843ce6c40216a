package reconcile

import (
	"fmt"
)

// TableError 处理某张表时失败，带上动作和语句方便排查，不需要重新计算差异
type TableError struct {
	Table     string
	Action    string
	Statement string
	Err       error
}

func (e *TableError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("table %s: %s: %v", e.Table, e.Action, e.Err)
	}
	return fmt.Sprintf("table %s: %s: %v\n\tstatement: %s", e.Table, e.Action, e.Err, e.Statement)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"tasky/internal/ops"
	"tasky/internal/service"
)

// TaskRef is a parsed task reference: either the row number shown by list
// or a raw task id.
type TaskRef struct {
	Num int
	ID  string
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses a task reference from args.
//
//  1. All digits → row number, counted across pages (11 is the first row of
//     page 2 with the default page size)
//  2. Anything else → task id
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return TaskRef{}, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return TaskRef{}, fmt.Errorf("unexpected argument: %s", args[1])
	}

	arg := strings.TrimSpace(args[0])
	if isAllDigits(arg) {
		num, err := strconv.Atoi(arg)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		if num < 1 {
			return TaskRef{}, fmt.Errorf("%w: %d", errOutOfRange, num)
		}
		return TaskRef{Num: num}, nil
	}
	return TaskRef{ID: arg}, nil
}

func (r TaskRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return strconv.Itoa(r.Num)
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// filterFlags selects the list a row number refers to.
type filterFlags struct {
	status string
	search string
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.status, "status", "", "")
	fs.StringVar(&f.search, "search", "", "")
}

func (f *filterFlags) validate() error {
	if s := strings.ToUpper(strings.TrimSpace(f.status)); s == "" || s == "ALL" {
		return nil
	}
	_, err := service.ParseStatus(f.status)
	return err
}

// resolveTask finds the task ref points at and returns the engine holding
// the page it lives on, so that later mutations update that page.
func resolveTask(ctx context.Context, rt *Runtime, f filterFlags, ref TaskRef) (*ops.Engine, service.Task, error) {
	q := rt.Query(1, 0, f.status, f.search)
	if ref.Num > 0 {
		q.Page = (ref.Num-1)/q.Limit + 1
	}
	eng := rt.Ops(q)
	res, err := eng.Fetch(ctx)

	if ref.Num > 0 {
		if err != nil {
			return nil, service.Task{}, err
		}
		// Rows are numbered by the page the server (or the local copy)
		// says it returned, which must be the page asked for.
		first := res.Page.FirstRow(q)
		if first != (q.Page-1)*q.Limit+1 {
			return nil, service.Task{}, fmt.Errorf("%w: page %d was requested", errStalePage, q.Page)
		}
		idx := ref.Num - first
		if idx >= len(res.Page.Data) {
			return nil, service.Task{}, fmt.Errorf("%w: %d", errOutOfRange, ref.Num)
		}
		return eng, res.Page.Data[idx], nil
	}

	if err == nil {
		if task, ok := res.Page.Find(ref.ID); ok {
			return eng, task, nil
		}
	}
	task, err := rt.Backend.GetTask(ctx, ref.ID)
	if err != nil {
		return nil, service.Task{}, err
	}
	return eng, task, nil
}

package service

import (
	"encoding/json"
	"time"
)

// Field is one optional value of a partial update.
// A set field with a nil Value is sent as JSON null.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Value returns a set field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null returns a set field that clears the value.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// FromPtr returns a set field holding *p, or a null field when p is nil.
func FromPtr[T any](p *T) Field[T] {
	if p == nil {
		return Null[T]()
	}
	return Value(*p)
}

// TaskUpdate is a partial task update. Unset fields are left unchanged.
type TaskUpdate struct {
	Name        Field[string]
	Description Field[string]
	Priority    Field[Priority]
	Status      Field[Status]
	Tags        Field[string]
	ParentID    Field[string]
	Archived    Field[bool]
	CompletedAt Field[time.Time]
}

// IsEmpty reports whether no field is set.
func (u TaskUpdate) IsEmpty() bool {
	return !u.Name.Set && !u.Description.Set && !u.Priority.Set && !u.Status.Set &&
		!u.Tags.Set && !u.ParentID.Set && !u.Archived.Set && !u.CompletedAt.Set
}

// MarshalJSON emits only the set fields.
func (u TaskUpdate) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	put(m, "name", u.Name)
	put(m, "description", u.Description)
	put(m, "priority", u.Priority)
	put(m, "status", u.Status)
	put(m, "tags", u.Tags)
	put(m, "parentId", u.ParentID)
	put(m, "archived", u.Archived)
	put(m, "completedAt", u.CompletedAt)
	return json.Marshal(m)
}

// UnmarshalJSON marks every present key as set; JSON null clears the value.
func (u *TaskUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out TaskUpdate
	for _, step := range []error{
		take(raw, "name", &out.Name),
		take(raw, "description", &out.Description),
		take(raw, "priority", &out.Priority),
		take(raw, "status", &out.Status),
		take(raw, "tags", &out.Tags),
		take(raw, "parentId", &out.ParentID),
		take(raw, "archived", &out.Archived),
		take(raw, "completedAt", &out.CompletedAt),
	} {
		if step != nil {
			return step
		}
	}
	*u = out
	return nil
}

// Apply returns t with the set fields of u applied.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Name.Set && u.Name.Value != nil {
		t.Name = *u.Name.Value
	}
	if u.Description.Set {
		t.Description = u.Description.Value
	}
	if u.Priority.Set && u.Priority.Value != nil {
		t.Priority = *u.Priority.Value
	}
	if u.Status.Set && u.Status.Value != nil {
		t.Status = *u.Status.Value
	}
	if u.Tags.Set {
		t.Tags = u.Tags.Value
	}
	if u.ParentID.Set {
		t.ParentID = u.ParentID.Value
	}
	if u.Archived.Set && u.Archived.Value != nil {
		t.Archived = *u.Archived.Value
	}
	if u.CompletedAt.Set {
		t.CompletedAt = u.CompletedAt.Value
	}
	return t
}

func put[T any](m map[string]any, key string, f Field[T]) {
	if !f.Set {
		return
	}
	if f.Value == nil {
		m[key] = nil
		return
	}
	m[key] = *f.Value
}

func take[T any](raw map[string]json.RawMessage, key string, f *Field[T]) error {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	f.Set = true
	if string(msg) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

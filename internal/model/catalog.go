package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyText       = errors.New("task text is empty")
	ErrUnknownCategory = errors.New("unknown category")
)

// Category is a named room with its ordered tasks.
type Category struct {
	Name  string
	Tasks []Task
}

func (c Category) Progress() int {
	return Progress(c.Tasks)
}

// Catalog maps room names to their tasks while keeping the seed order of rooms.
// Every operation returns a new Catalog; a value is never changed after it is built,
// so a snapshot handed to a renderer stays consistent.
type Catalog struct {
	categories []Category
}

// NewCatalog builds a catalog from categories, copying their task lists.
func NewCatalog(categories ...Category) Catalog {
	out := make([]Category, 0, len(categories))
	for _, cat := range categories {
		out = append(out, Category{Name: cat.Name, Tasks: cloneTasks(cat.Tasks)})
	}
	return Catalog{categories: out}
}

func (c Catalog) Len() int {
	return len(c.categories)
}

// Names returns category names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		names = append(names, cat.Name)
	}
	return names
}

func (c Catalog) Has(name string) bool {
	return c.index(name) >= 0
}

// Categories returns a deep copy of the categories.
func (c Catalog) Categories() []Category {
	return c.Clone().categories
}

// Tasks returns a copy of the tasks of one category.
func (c Catalog) Tasks(name string) ([]Task, bool) {
	i := c.index(name)
	if i < 0 {
		return nil, false
	}
	return cloneTasks(c.categories[i].Tasks), true
}

// AllTasks flattens every category in order.
func (c Catalog) AllTasks() []Task {
	var all []Task
	for _, cat := range c.categories {
		all = append(all, cat.Tasks...)
	}
	return all
}

// Progress is the overall completion across all categories.
func (c Catalog) Progress() int {
	return Progress(c.AllTasks())
}

// Clone returns a fully independent copy.
func (c Catalog) Clone() Catalog {
	return NewCatalog(c.categories...)
}

// Toggle flips the completion of task id in category.
func (c Catalog) Toggle(category string, id int64) (Catalog, bool) {
	ci := c.index(category)
	if ci < 0 {
		return c, false
	}
	ti := taskIndex(c.categories[ci].Tasks, id)
	if ti < 0 {
		return c, false
	}
	next := c.Clone()
	task := &next.categories[ci].Tasks[ti]
	task.Completed = !task.Completed
	return next, true
}

// Add appends a new incomplete task to the end of category. The text is stored
// trimmed. The id is derived from now and bumped past every id already in the
// catalog.
func (c Catalog) Add(category, text string, now time.Time) (Catalog, Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return c, Task{}, ErrEmptyText
	}
	ci := c.index(category)
	if ci < 0 {
		return c, Task{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	task := Task{ID: c.nextID(now), Text: text}
	next := c.Clone()
	next.categories[ci].Tasks = append(next.categories[ci].Tasks, task)
	return next, task, nil
}

// Remove drops task id from category.
func (c Catalog) Remove(category string, id int64) (Catalog, bool) {
	ci := c.index(category)
	if ci < 0 {
		return c, false
	}
	if taskIndex(c.categories[ci].Tasks, id) < 0 {
		return c, false
	}
	next := c.Clone()
	kept := make([]Task, 0, len(next.categories[ci].Tasks))
	for _, task := range next.categories[ci].Tasks {
		if task.ID != id {
			kept = append(kept, task)
		}
	}
	next.categories[ci].Tasks = kept
	return next, true
}

// ResetAll marks every task incomplete and keeps the structure as is.
func (c Catalog) ResetAll() Catalog {
	next := c.Clone()
	for ci := range next.categories {
		for ti := range next.categories[ci].Tasks {
			next.categories[ci].Tasks[ti].Completed = false
		}
	}
	return next
}

// Validate checks that names are unique and non-empty and that task ids are
// unique across the whole catalog.
func (c Catalog) Validate() error {
	names := make(map[string]struct{}, len(c.categories))
	ids := make(map[int64]string)
	for _, cat := range c.categories {
		if strings.TrimSpace(cat.Name) == "" {
			return errors.New("category name is empty")
		}
		if _, dup := names[cat.Name]; dup {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		names[cat.Name] = struct{}{}
		for _, task := range cat.Tasks {
			if strings.TrimSpace(task.Text) == "" {
				return fmt.Errorf("task %d in %q: %w", task.ID, cat.Name, ErrEmptyText)
			}
			if other, dup := ids[task.ID]; dup {
				return fmt.Errorf("task id %d used in both %q and %q", task.ID, other, cat.Name)
			}
			ids[task.ID] = cat.Name
		}
	}
	return nil
}

func (c Catalog) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	for _, task := range c.AllTasks() {
		if task.ID >= id {
			id = task.ID + 1
		}
	}
	return id
}

func (c Catalog) index(name string) int {
	for i, cat := range c.categories {
		if cat.Name == name {
			return i
		}
	}
	return -1
}

func taskIndex(tasks []Task, id int64) int {
	for i, task := range tasks {
		if task.ID == id {
			return i
		}
	}
	return -1
}

func cloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// MarshalJSON encodes the catalog as an object keyed by category name,
// written in catalog order.
func (c Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cat := range c.categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cat.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(cloneTasks(cat.Tasks))
		if err != nil {
			return nil, fmt.Errorf("encode category %q: %w", cat.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by category name and keeps key order.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	if tok == nil {
		*c = Catalog{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode catalog: expected object, got %v", tok)
	}

	var next Catalog
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode catalog: %w", err)
		}
		name, _ := tok.(string)
		var tasks []Task
		if err := dec.Decode(&tasks); err != nil {
			return fmt.Errorf("decode category %q: %w", name, err)
		}
		next.put(name, tasks)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	*c = next
	return nil
}

// MarshalYAML encodes the catalog as an ordered mapping.
func (c Catalog) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, cat := range c.categories {
		var value yaml.Node
		if err := value.Encode(cloneTasks(cat.Tasks)); err != nil {
			return nil, fmt.Errorf("encode category %q: %w", cat.Name, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cat.Name}
		node.Content = append(node.Content, key, &value)
	}
	return node, nil
}

// UnmarshalYAML reads an ordered mapping of category name to tasks.
func (c *Catalog) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: catalog must be a mapping of room to tasks", value.Line)
	}
	var next Catalog
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var tasks []Task
		if err := value.Content[i+1].Decode(&tasks); err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
		next.put(name, tasks)
	}
	*c = next
	return nil
}

// put replaces the tasks of name, appending the category if it is new.
func (c *Catalog) put(name string, tasks []Task) {
	if i := c.index(name); i >= 0 {
		c.categories[i].Tasks = cloneTasks(tasks)
		return
	}
	c.categories = append(c.categories, Category{Name: name, Tasks: cloneTasks(tasks)})
}

// Package taxonomy flattens the job category tree into parent/child records.
package taxonomy

import (
	"errors"
	"fmt"
	"sort"
)

// MaxDepth bounds recursion for trees whose depth cannot be trusted.
// The site's taxonomy is three levels deep.
const MaxDepth = 64

// ErrMalformedTaxonomy is returned when the category tree is not a finite tree.
var ErrMalformedTaxonomy = errors.New("malformed taxonomy")

// CategoryNode is one node of the job category tree as served by the site.
type CategoryNode struct {
	Code        string          `json:"no"`
	DisplayName string          `json:"des"`
	Children    []*CategoryNode `json:"n,omitempty"`
}

// FlatCategory is a non-root node together with its direct parent.
type FlatCategory struct {
	JobCode    string `json:"job_code"`
	JobName    string `json:"job_name"`
	ParentCode string `json:"parent_code"`
	ParentName string `json:"parent_name"`
}

// Flatten walks the tree depth-first in pre-order and returns one record per
// non-root node. Top-level nodes only contribute as parents.
func Flatten(nodes []*CategoryNode) ([]FlatCategory, error) {
	w := walker{onPath: make(map[*CategoryNode]bool)}
	if err := w.walk(nodes, nil, 0); err != nil {
		return nil, err
	}
	return w.out, nil
}

type walker struct {
	onPath map[*CategoryNode]bool
	out    []FlatCategory
}

func (w *walker) walk(nodes []*CategoryNode, parent *CategoryNode, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: deeper than %d levels", ErrMalformedTaxonomy, MaxDepth)
	}

	for i, node := range nodes {
		if node == nil {
			return fmt.Errorf("%w: nil node at depth %d index %d", ErrMalformedTaxonomy, depth, i)
		}
		if w.onPath[node] {
			return fmt.Errorf("%w: cycle at node %q", ErrMalformedTaxonomy, node.Code)
		}

		if parent != nil {
			w.out = append(w.out, FlatCategory{
				JobCode:    node.Code,
				JobName:    node.DisplayName,
				ParentCode: parent.Code,
				ParentName: parent.DisplayName,
			})
		}

		if len(node.Children) == 0 {
			continue
		}

		w.onPath[node] = true
		err := w.walk(node.Children, node, depth+1)
		delete(w.onPath, node)
		if err != nil {
			return err
		}
	}
	return nil
}

// SortByCode orders categories by job code in place. Equal codes keep their
// traversal order.
func SortByCode(cats []FlatCategory) {
	sort.SliceStable(cats, func(i, j int) bool {
		return cats[i].JobCode < cats[j].JobCode
	})
}

// Codes returns the job codes in order.
func Codes(cats []FlatCategory) []string {
	codes := make([]string, len(cats))
	for i, c := range cats {
		codes[i] = c.JobCode
	}
	return codes
}

// CountNodes returns the number of nodes in the tree, roots included.
// It does not guard against cycles; call Flatten first.
func CountNodes(nodes []*CategoryNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + CountNodes(node.Children)
	}
	return n
}

package retrieval

import "context"

// NoneSearcher never finds anything. It backs the "none" retrieval
// backend, under which every investigation reports no relevant text.
type NoneSearcher struct{}

func (NoneSearcher) Search(context.Context, string, int) ([]Passage, error) { return nil, nil }

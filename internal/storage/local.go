package storage

import (
	"context"
	"fmt"
	"os"
)

// LocalCleaner removes intermediate namespaces from the local filesystem.
type LocalCleaner struct{}

func NewLocalCleaner() *LocalCleaner {
	return &LocalCleaner{}
}

func (c *LocalCleaner) Remove(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(namespace); err != nil {
		return fmt.Errorf("removing %s: %w", namespace, err)
	}
	return nil
}

func (c *LocalCleaner) Describe(namespace string) string {
	return "rm -rf " + namespace
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/colinmarc/hdfs/v2"
)

// HDFSCleaner removes intermediate namespaces by talking to the namenode
// directly instead of spawning the engine's filesystem shell.
type HDFSCleaner struct {
	client   *hdfs.Client
	namenode string
}

func NewHDFSCleaner(namenode, user string) (*HDFSCleaner, error) {
	if namenode == "" {
		return nil, errors.New("hdfs cleaner needs a namenode address")
	}
	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: []string{namenode},
		User:      user,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to namenode %s: %w", namenode, err)
	}
	return &HDFSCleaner{client: client, namenode: namenode}, nil
}

func (c *HDFSCleaner) Remove(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := HDFSPath(namespace)
	if err != nil {
		return err
	}
	if err := c.client.RemoveAll(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	return nil
}

func (c *HDFSCleaner) Describe(namespace string) string {
	p, err := HDFSPath(namespace)
	if err != nil {
		p = namespace
	}
	return fmt.Sprintf("hdfs rm -r %s (namenode %s)", p, c.namenode)
}

func (c *HDFSCleaner) Close() error {
	return c.client.Close()
}

// HDFSPath strips an hdfs:// scheme and authority, leaving the absolute
// path the namenode understands.
func HDFSPath(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid location %q: %w", location, err)
	}
	switch u.Scheme {
	case "":
		return location, nil
	case "hdfs":
		if u.Path == "" {
			return "/", nil
		}
		return u.Path, nil
	default:
		return "", fmt.Errorf("unsupported scheme %q in %s", u.Scheme, location)
	}
}

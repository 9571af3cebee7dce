//go:build !unix

package source

import (
	"errors"
	"os"
)

func mapFile(*os.File, int64) (Source, error) {
	return nil, errors.New("source: memory mapping not supported")
}

package blocks

import (
	"fmt"
	"os"

	"github.com/dukex/leadflow/pkg/dataset"
	"github.com/dukex/leadflow/pkg/models"
)

// runReadCSV loads a CSV from the uploads root. The path must be a bare file
// name; anything containing a separator is rejected, never resolved.
func (r *Runner) runReadCSV(params models.ReadCSVParams) (*dataset.Dataset, error) {
	path, err := r.storage.UploadPath(params.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid path in read_csv block: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("input file %q not found", params.Path)
		}

		return nil, fmt.Errorf("failed to open %q: %w", params.Path, err)
	}
	defer f.Close()

	ds, err := dataset.FromCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", params.Path, err)
	}

	return ds, nil
}

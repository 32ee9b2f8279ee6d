package blocks

import (
	"fmt"
	"os"
	"strings"

	"github.com/dukex/leadflow/pkg/dataset"
	"github.com/dukex/leadflow/pkg/files"
	"github.com/dukex/leadflow/pkg/models"
)

// ResolveSaveFilename sanitizes a save_csv path and forces the .csv suffix.
// The executor uses the same resolution to record a job's output_path.
func ResolveSaveFilename(params models.SaveCSVParams) (string, error) {
	name, err := files.SafeFilename(strings.TrimSpace(params.Path))
	if err != nil {
		return "", fmt.Errorf("invalid path in save_csv block: %w", err)
	}

	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}

	return name, nil
}

// runSaveCSV writes the dataset (no index column) into the outputs root and
// returns the dataset unchanged.
func (r *Runner) runSaveCSV(params models.SaveCSVParams, ds *dataset.Dataset) (*dataset.Dataset, error) {
	name, err := ResolveSaveFilename(params)
	if err != nil {
		return nil, err
	}

	path, err := r.storage.OutputPath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output %q: %w", name, err)
	}
	defer f.Close()

	if err := ds.ToCSV(f); err != nil {
		return nil, fmt.Errorf("failed to write output %q: %w", name, err)
	}

	return ds, nil
}

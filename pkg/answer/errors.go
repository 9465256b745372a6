package answer

import "errors"

// ErrNotReady is returned for questions received before the pipeline has
// finished loading.
var ErrNotReady = errors.New("answer pipeline is not ready")

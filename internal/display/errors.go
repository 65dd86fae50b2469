package display

import "boxshop-api/internal/model"

// ErrSync wraps every refresh failure.
var ErrSync = model.ErrDisplaySyncFailed

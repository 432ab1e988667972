package cli

import "errors"

var errMissingWatchDir = errors.New("no directory given and watch.dir is not set")

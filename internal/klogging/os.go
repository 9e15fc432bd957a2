package klogging

import "os"

// OsExit is swappable so tests can intercept Fatal.
var OsExit = os.Exit

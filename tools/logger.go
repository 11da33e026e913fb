package tools

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
)

var isEnabled = true
var printTimestamp = true

func EnableLogger() {
	isEnabled = true
}

func DisableLogger() {
	isEnabled = false
}

func EnableLoggerTimestamp() {
	printTimestamp = true
}

func DisableLoggerTimestamp() {
	printTimestamp = false
}

// ApplyLogFlags switches the user facing output according to the command flags.
func ApplyLogFlags(flags LogFlags) {
	if *flags.Silent {
		DisableLogger()
	}
	if !*flags.LogTimestamp {
		DisableLoggerTimestamp()
	}
}

// LogOutput prints a progress message for the user. Messages are always mirrored to the glog files.
func LogOutput(val ...interface{}) {
	glog.Infoln(val...)
	if !isEnabled {
		return
	}
	if printTimestamp {
		fmt.Fprint(os.Stdout, "["+time.Now().Format("2006-01-02 15.04:05.000")+"] ")
	}
	fmt.Fprintln(os.Stdout, val...)
}

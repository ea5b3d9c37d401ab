package logdir

import (
	"log"
	"testing"
)

func TestLogDir(t *testing.T) {
	defer func(limit int64) { FileSizeLimitMB = limit }(FileSizeLimitMB)
	FileSizeLimitMB = 1

	b, err := New("/tmp", "testlogdir")
	if err != nil {
		t.Fatal(err)
	}
	log := log.New(b, "", log.Flags())
	for i := 0; i < 1024*1024; i++ {
		log.Printf("hello world")
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/chenbimo/befly-sub001/log/writer"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSLogWithOptions(t *testing.T) {
	Convey("测试 NewSLogWithOptions", t, func() {
		Convey("nil options", func() {
			l, err := NewSLogWithOptions(nil)
			So(err, ShouldNotBeNil)
			So(l, ShouldBeNil)
		})

		Convey("非法级别", func() {
			_, err := NewSLogWithOptions(&SLogOptions{Level: "verbose"})
			So(err, ShouldNotBeNil)
		})

		Convey("非法格式", func() {
			_, err := NewSLogWithOptions(&SLogOptions{Format: "xml"})
			So(err, ShouldNotBeNil)
		})

		Convey("文件输出", func() {
			path := filepath.Join(t.TempDir(), "logs", "sync.log")
			l, err := NewSLogWithOptions(&SLogOptions{
				Level: "info",
				Output: writer.Options{
					Type: "file",
					File: writer.FileWriterOptions{Path: path},
				},
			})
			So(err, ShouldBeNil)
			l.Info("table created", "table", "user")
			So(l.Close(), ShouldBeNil)
			So(path, ShouldNotBeEmpty)
		})
	})
}

func TestSLogWithWriter(t *testing.T) {
	Convey("测试 json 输出与上下文字段", t, func() {
		var buf bytes.Buffer
		l, err := NewSLogWithWriter(&buf, &SLogOptions{Level: "info", Format: "json"})
		So(err, ShouldBeNil)

		l.With("table", "user").Info("column added", "column", "age")
		l.Debug("hidden")

		var record map[string]any
		So(json.Unmarshal(buf.Bytes(), &record), ShouldBeNil)
		So(record["msg"], ShouldEqual, "column added")
		So(record["table"], ShouldEqual, "user")
		So(record["column"], ShouldEqual, "age")
	})

	Convey("测试级别过滤", t, func() {
		var buf bytes.Buffer
		l, err := NewSLogWithWriter(&buf, &SLogOptions{Level: "warn"})
		So(err, ShouldBeNil)

		l.Info("skipped")
		So(buf.Len(), ShouldEqual, 0)
		l.WithGroup("executor").Warn("fallback", "attempt", 2)
		So(buf.String(), ShouldContainSubstring, "executor.attempt=2")
	})
}

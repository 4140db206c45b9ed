package util

import (
	"fmt"
	"log"
	"net/rpc"
	"reflect"
)

// describe prints a request or response body. Types that carry payloads
// implement fmt.Stringer so the log never holds raw file bytes.
func describe(body interface{}) (string, bool) {
	v := reflect.Indirect(reflect.ValueOf(body))
	if !v.IsValid() {
		return "", false
	}
	return fmt.Sprintf("%+v", v.Interface()), true
}

type loggingServerCodec struct {
	remote string
	rpc.ServerCodec
	lastMethod string
}

func (self *loggingServerCodec) ReadRequestHeader(req *rpc.Request) error {
	err := self.ServerCodec.ReadRequestHeader(req)
	if err == nil {
		self.lastMethod = req.ServiceMethod
	}
	return err
}

func (self *loggingServerCodec) ReadRequestBody(p interface{}) error {
	err := self.ServerCodec.ReadRequestBody(p)
	if err != nil {
		log.Println(self.remote, "->", self.lastMethod, err)
	} else if s, ok := describe(p); ok {
		log.Println(self.remote, "->", self.lastMethod, s)
	}
	return err
}

func (self *loggingServerCodec) WriteResponse(header *rpc.Response, body interface{}) error {
	switch s, ok := describe(body); {
	case header.Error != "":
		log.Println(self.remote, "<-", header.ServiceMethod, "error:", header.Error)
	case ok:
		log.Println(self.remote, "<-", header.ServiceMethod, s)
	default:
		log.Println(self.remote, "<-", header.ServiceMethod, "ok")
	}
	return self.ServerCodec.WriteResponse(header, body)
}

// Logs every request and response passing through parent.
func LoggingServerCodec(remote string, parent rpc.ServerCodec) rpc.ServerCodec {
	return &loggingServerCodec{remote, parent, ""}
}

type loggingClientCodec struct {
	remote string
	rpc.ClientCodec
}

func (self *loggingClientCodec) ReadResponseBody(p interface{}) error {
	err := self.ClientCodec.ReadResponseBody(p)
	switch s, ok := describe(p); {
	case err != nil:
		log.Println(self.remote, "->", err)
	case ok:
		log.Println(self.remote, "->", s)
	default:
		log.Println(self.remote, "->", "ok")
	}
	return err
}

func (self *loggingClientCodec) WriteRequest(r *rpc.Request, param interface{}) error {
	if s, ok := describe(param); ok {
		log.Println(self.remote, "<-", r.ServiceMethod, s)
	} else {
		log.Println(self.remote, "<-", r.ServiceMethod)
	}
	return self.ClientCodec.WriteRequest(r, param)
}

func LoggingClientCodec(remote string, parent rpc.ClientCodec) rpc.ClientCodec {
	return &loggingClientCodec{remote, parent}
}

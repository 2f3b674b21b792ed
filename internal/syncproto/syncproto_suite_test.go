package syncproto_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSyncproto(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Syncproto Suite")
}

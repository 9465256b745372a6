package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docqa/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("stamps a unique id and UTC time", func() {
		a := eventstream.NewEvent(eventstream.EventTypeIndexBuilt, nil)
		b := eventstream.NewEvent(eventstream.EventTypeIndexBuilt, nil)

		Expect(a.EventID).NotTo(BeEmpty())
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(a.EmittedAt.Location().String()).To(Equal("UTC"))
		Expect(a.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
	})

	It("marshals with the expected top-level keys", func() {
		page := 2
		event := eventstream.NewEvent(eventstream.EventTypeQuestionAnswered, eventstream.QuestionAnsweredPayload{
			Question: "How many days?",
			Sources:  []eventstream.SourceRef{{Source: "a.pdf", Page: &page}, {Source: "b.docx"}},
		})

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKeyWithValue("event_type", "docqa.question.answered"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("schema_version"))

		body := got["payload"].(map[string]any)
		Expect(body["sources"]).To(HaveLen(2))
		Expect(body["sources"].([]any)[1]).NotTo(HaveKey("page"))
	})
})

package chatcmder

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/picitalk/pkg/archive"
	"github.com/papercomputeco/picitalk/pkg/imaging"
	"github.com/papercomputeco/picitalk/pkg/session"
	"github.com/papercomputeco/picitalk/pkg/stt"
	"github.com/papercomputeco/picitalk/pkg/tts"
	"github.com/papercomputeco/picitalk/pkg/vqa"
)

type echoModel struct{}

func (echoModel) Answer(_ context.Context, _ *imaging.Image, question string) (string, error) {
	return "You asked: " + question, nil
}

func (echoModel) ActiveModel() string { return "llava" }

type noTranscriber struct{}

func (noTranscriber) Transcribe(context.Context, stt.Audio) (string, error) { return "", nil }

type noSpeech struct{}

func (noSpeech) Available() bool { return false }

func (noSpeech) Synthesize(context.Context, string, tts.Voice) ([]byte, error) { return nil, nil }

var _ = Describe("Chat Model", func() {
	var (
		ctx    context.Context
		tmpDir string
		svc    *vqa.Service
		sess   *session.Session
		m      *chatModel
	)

	writePNG := func(name string, w, h int) string {
		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)))).To(Succeed())
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, buf.Bytes(), 0o600)).To(Succeed())
		return path
	}

	// typeLine enters line and runs the resulting command, feeding its
	// message back the way the bubbletea runtime would.
	typeLine := func(line string) tea.Cmd {
		m.input.SetValue(line)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		return cmd
	}

	// drain runs cmd and any batched commands until a domain message is delivered.
	var drain func(cmd tea.Cmd)
	drain = func(cmd tea.Cmd) {
		if cmd == nil {
			return
		}
		switch msg := cmd().(type) {
		case tea.BatchMsg:
			for _, c := range msg {
				drain(c)
			}
		case answerMsg, imageMsg:
			m.Update(msg)
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "pici-chat-test-*")
		Expect(err).NotTo(HaveOccurred())

		svc = vqa.NewService(echoModel{}, noTranscriber{}, noSpeech{}, archive.NewMemoryStore(), imaging.DefaultOptions(), zap.NewNop())
		sess = session.NewStore(0, tts.DefaultVoice()).Create()

		path := writePNG("first.png", 8, 8)
		_, err = setImage(ctx, svc, sess, path)
		Expect(err).NotTo(HaveOccurred())

		m = newChatModel(ctx, svc, sess, path)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("shows the hint before the first question", func() {
		Expect(m.View()).To(ContainSubstring("Your conversation will appear here"))
	})

	It("answers questions", func() {
		drain(typeLine("What is this?"))

		Expect(m.busy).To(BeFalse())
		Expect(sess.Turns()).To(HaveLen(2))
		Expect(m.transcript()).To(ContainSubstring("You: What is this?"))
		Expect(m.transcript()).To(ContainSubstring("Assistant: You asked: What is this?"))
	})

	It("shows prompts for empty questions", func() {
		drain(typeLine("   "))

		Expect(m.status).To(Equal(vqa.MsgEmptyQuestion))
		Expect(sess.Turns()).To(BeEmpty())
	})

	It("resets the conversation", func() {
		drain(typeLine("What is this?"))
		drain(typeLine("/reset"))

		Expect(sess.Turns()).To(BeEmpty())
		Expect(sess.HasImage()).To(BeTrue())
	})

	It("switches images", func() {
		drain(typeLine("What is this?"))

		next := writePNG("second.png", 20, 10)
		drain(typeLine("/image " + next))

		Expect(m.imagePath).To(Equal(next))
		Expect(m.status).To(ContainSubstring("20x10"))
		Expect(sess.Turns()).To(BeEmpty())
	})

	It("reports image errors", func() {
		drain(typeLine("/image " + filepath.Join(tmpDir, "missing.png")))

		Expect(m.status).NotTo(BeEmpty())
		Expect(sess.HasImage()).To(BeTrue())
	})

	It("quits", func() {
		cmd := typeLine("/quit")
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(Equal(tea.Quit()))
	})

	It("rejects unknown commands", func() {
		Expect(typeLine("/dance")).To(BeNil())
		Expect(m.status).To(ContainSubstring("unknown command"))
	})
})

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mslcrm/models"
)

// ---- in-memory fakes ----

type memoryConversationStore struct {
	mu        sync.Mutex
	messages  []models.Message
	appendErr error
}

func (m *memoryConversationStore) Append(_ context.Context, msg models.Message) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryConversationStore) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryConversationStore) ListAll(_ context.Context) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages...), nil
}

type memoryTaskStore struct {
	mu        sync.Mutex
	inserted  []models.TaskDraft
	insertErr error
}

func (m *memoryTaskStore) Insert(_ context.Context, draft models.TaskDraft) (models.Task, error) {
	if m.insertErr != nil {
		return models.Task{}, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, draft)
	return models.Task{
		ID:              "task-1",
		TaskDescription: draft.TaskDescription,
		TaskRequestedBy: draft.TaskRequestedBy,
		TaskAssignedTo:  draft.TaskAssignedTo,
		TaskCreatedBy:   draft.TaskCreatedBy,
		DueDate:         draft.DueDate,
		Status:          draft.Status,
	}, nil
}

type stubCompletion struct {
	reply string
	err   error
	calls int
}

func (s *stubCompletion) Complete(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestChatService(conv *memoryConversationStore, tasks *memoryTaskStore, completion *stubCompletion) *ChatService {
	return NewChatService(conv, tasks, completion, NewPatternTaskExtractor())
}

// ---- tests ----

func TestSendTaskCreationFlow(t *testing.T) {
	conv := &memoryConversationStore{}
	tasks := &memoryTaskStore{}
	completion := &stubCompletion{reply: "should not be called"}
	svc := newTestChatService(conv, tasks, completion)

	out, err := svc.Send(context.Background(), SendMessageInput{
		UserID:  "user-1",
		Message: "create task send Dr. Smith details of study X",
	})
	require.NoError(t, err)

	assert.Equal(t, "Task created successfully", out.AssistantMessage.Content)
	assert.Equal(t, models.RoleAssistant, out.AssistantMessage.Role)
	assert.Zero(t, completion.calls, "completion service must not be called on the task path")

	require.Len(t, tasks.inserted, 1)
	draft := tasks.inserted[0]
	assert.Equal(t, "Send Dr. Smith details of study X", draft.TaskDescription)
	assert.Equal(t, "Dr. Smith", draft.TaskRequestedBy)
	assert.Equal(t, "user-1", draft.TaskAssignedTo)
	assert.Equal(t, models.TaskStatusPending, draft.Status)

	// ユーザーとアシスタントの両方が永続化されていること
	require.Len(t, conv.messages, 2)
	assert.Equal(t, models.RoleUser, conv.messages[0].Role)
	assert.Equal(t, models.RoleAssistant, conv.messages[1].Role)
}

func TestSendTaskCreationFailure(t *testing.T) {
	conv := &memoryConversationStore{}
	tasks := &memoryTaskStore{insertErr: errors.New("insert failed")}
	completion := &stubCompletion{}
	svc := newTestChatService(conv, tasks, completion)

	out, err := svc.Send(context.Background(), SendMessageInput{
		UserID:  "user-1",
		Message: "create task send Dr. Smith details of study X",
	})
	require.NoError(t, err, "task store failure must not escape as an error")

	assert.Equal(t, "Failed to create task. Please try again.", out.AssistantMessage.Content)

	// タスクの中身がトランスクリプトに漏れていないこと
	transcript := svc.Transcript(out.ConversationID)
	assistantCount := 0
	for _, msg := range transcript {
		if msg.Role == models.RoleAssistant {
			assistantCount++
			assert.Equal(t, "Failed to create task. Please try again.", msg.Content)
		}
	}
	assert.Equal(t, 1, assistantCount)
}

func TestSendCompletionFlow(t *testing.T) {
	conv := &memoryConversationStore{}
	tasks := &memoryTaskStore{}
	completion := &stubCompletion{reply: "Point one.\n\nPoint two."}
	svc := newTestChatService(conv, tasks, completion)

	out, err := svc.Send(context.Background(), SendMessageInput{
		UserID:  "user-1",
		Message: "What are the endpoints of study X?",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, completion.calls)
	assert.Equal(t, "- Point one\n\n- Point two", out.AssistantMessage.Content)
	assert.Empty(t, tasks.inserted)

	require.Len(t, conv.messages, 2)
	assert.Equal(t, out.AssistantMessage.Content, conv.messages[1].Content)
}

func TestSendCompletionFailure(t *testing.T) {
	conv := &memoryConversationStore{}
	svc := newTestChatService(conv, &memoryTaskStore{}, &stubCompletion{err: errors.New("upstream down")})

	out, err := svc.Send(context.Background(), SendMessageInput{
		UserID:  "user-1",
		Message: "Tell me about study X",
	})
	require.NoError(t, err, "completion failure must not escape as an error")

	assert.Equal(t, "Sorry, I am unable to process your request right now.", out.AssistantMessage.Content)
	// 失敗メッセージ自体は永続化される
	require.Len(t, conv.messages, 2)
}

func TestSendGeneratesConversationID(t *testing.T) {
	svc := newTestChatService(&memoryConversationStore{}, &memoryTaskStore{}, &stubCompletion{reply: "ok"})

	out, err := svc.Send(context.Background(), SendMessageInput{
		UserID:  "user-1",
		Message: "hello",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ConversationID)
	assert.Equal(t, out.ConversationID, out.UserMessage.ConversationID)
	assert.Equal(t, out.ConversationID, out.AssistantMessage.ConversationID)
}

func TestSendKeepsExistingConversationID(t *testing.T) {
	svc := newTestChatService(&memoryConversationStore{}, &memoryTaskStore{}, &stubCompletion{reply: "ok"})

	out, err := svc.Send(context.Background(), SendMessageInput{
		ConversationID: "conv-42",
		UserID:         "user-1",
		Message:        "hello again",
	})
	require.NoError(t, err)

	assert.Equal(t, "conv-42", out.ConversationID)
}

func TestSendProceedsWhenUserAppendFails(t *testing.T) {
	// ユーザーメッセージの保存失敗はフローを止めない（観測された挙動の維持）
	conv := &memoryConversationStore{appendErr: errors.New("write failed")}
	completion := &stubCompletion{reply: "still works"}
	svc := newTestChatService(conv, &memoryTaskStore{}, completion)

	out, err := svc.Send(context.Background(), SendMessageInput{
		UserID:  "user-1",
		Message: "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, completion.calls)
	assert.Equal(t, "- still works", out.AssistantMessage.Content)

	// 楽観的更新によりメモリ上には両方残っている
	transcript := svc.Transcript(out.ConversationID)
	require.Len(t, transcript, 2)
}

func TestSendEmptyMessageRejected(t *testing.T) {
	completion := &stubCompletion{reply: "ok"}
	svc := newTestChatService(&memoryConversationStore{}, &memoryTaskStore{}, completion)

	_, err := svc.Send(context.Background(), SendMessageInput{UserID: "user-1", Message: ""})
	assert.Error(t, err)

	// 空白だけのメッセージも同じ扱い
	_, err = svc.Send(context.Background(), SendMessageInput{UserID: "user-1", Message: "   \t\n"})
	assert.Error(t, err)
	assert.Zero(t, completion.calls)
}

func TestTranscriptKeepsSubmissionOrder(t *testing.T) {
	svc := newTestChatService(&memoryConversationStore{}, &memoryTaskStore{}, &stubCompletion{reply: "reply"})

	first, err := svc.Send(context.Background(), SendMessageInput{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "first message",
	})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), SendMessageInput{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "second message",
	})
	require.NoError(t, err)

	transcript := svc.Transcript(first.ConversationID)
	require.Len(t, transcript, 4)
	assert.Equal(t, "first message", transcript[0].Content)
	assert.Equal(t, models.RoleAssistant, transcript[1].Role)
	assert.Equal(t, "second message", transcript[2].Content)
	assert.Equal(t, models.RoleAssistant, transcript[3].Role)
}

// 生成AI呼び出しで待たされるスタブ。呼び出し開始を通知してから解放まで止まる。
type blockingCompletion struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingCompletion) Complete(_ context.Context, _ string) (string, error) {
	b.started <- struct{}{}
	<-b.release
	return "delayed reply", nil
}

func TestConcurrentSendsKeepUserMessageOrder(t *testing.T) {
	// 1通目の応答待ちの間に2通目を送っても、ユーザーメッセージは
	// 送信順でトランスクリプトに並ぶこと。アシスタント応答の順序は保証しない。
	completion := &blockingCompletion{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc := NewChatService(&memoryConversationStore{}, &memoryTaskStore{}, completion, NewPatternTaskExtractor())

	var wg sync.WaitGroup
	send := func(message string) {
		defer wg.Done()
		_, err := svc.Send(context.Background(), SendMessageInput{
			ConversationID: "conv-1",
			UserID:         "user-1",
			Message:        message,
		})
		assert.NoError(t, err)
	}

	// 1通目が生成AI待ちに入ってから2通目を出す
	wg.Add(1)
	go send("first message")
	<-completion.started

	wg.Add(1)
	go send("second message")
	<-completion.started

	// 両方が待ち状態になったところで解放
	close(completion.release)
	wg.Wait()

	transcript := svc.Transcript("conv-1")
	require.Len(t, transcript, 4)
	assert.Equal(t, "first message", transcript[0].Content)
	assert.Equal(t, models.RoleUser, transcript[0].Role)
	assert.Equal(t, "second message", transcript[1].Content)
	assert.Equal(t, models.RoleUser, transcript[1].Role)
	assert.Equal(t, models.RoleAssistant, transcript[2].Role)
	assert.Equal(t, models.RoleAssistant, transcript[3].Role)
}

func TestHistoryReplacesTranscriptWholesale(t *testing.T) {
	conv := &memoryConversationStore{}
	svc := newTestChatService(conv, &memoryTaskStore{}, &stubCompletion{reply: "ok"})

	// ストア側にだけ存在するメッセージ
	stored := models.Message{
		ID:             "m-1",
		ConversationID: "conv-9",
		Role:           models.RoleUser,
		Content:        "from the store",
		Timestamp:      time.Now(),
	}
	require.NoError(t, conv.Append(context.Background(), stored))

	// メモリ側には別の（古い）内容を入れておく
	svc.appendToTranscript(models.Message{
		ID:             "stale",
		ConversationID: "conv-9",
		Role:           models.RoleAssistant,
		Content:        "stale optimistic entry",
	})

	messages, err := svc.History(context.Background(), "conv-9")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "from the store", messages[0].Content)

	// キャッシュは差分ではなく丸ごと置き換え
	transcript := svc.Transcript("conv-9")
	require.Len(t, transcript, 1)
	assert.Equal(t, "m-1", transcript[0].ID)
}

func TestListConversationsGroupsAndSorts(t *testing.T) {
	conv := &memoryConversationStore{}
	svc := newTestChatService(conv, &memoryTaskStore{}, &stubCompletion{reply: "ok"})

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	seed := []models.Message{
		{ID: "a1", ConversationID: "conv-a", Role: models.RoleUser, Content: "first question", Timestamp: base},
		{ID: "a2", ConversationID: "conv-a", Role: models.RoleAssistant, Content: "first answer", Timestamp: base.Add(time.Minute)},
		{ID: "b1", ConversationID: "conv-b", Role: models.RoleUser, Content: "newer question", Timestamp: base.Add(time.Hour)},
	}
	for _, msg := range seed {
		require.NoError(t, conv.Append(context.Background(), msg))
	}

	summaries, err := svc.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// 新しい会話が先頭
	assert.Equal(t, "conv-b", summaries[0].ConversationID)
	assert.Equal(t, "newer question", summaries[0].Title)

	assert.Equal(t, "conv-a", summaries[1].ConversationID)
	assert.Equal(t, "first question", summaries[1].Title)
	assert.Equal(t, "first answer", summaries[1].LastMessage)
}

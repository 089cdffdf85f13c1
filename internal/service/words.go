package service

import "math/rand/v2"

// WordProvider 提供每回合要畫的單字
type WordProvider interface {
	Word() string
}

// RandomWordProvider 從固定字庫中均勻隨機抽字，允許重複
type RandomWordProvider struct {
	words []string
}

// NewRandomWordProvider 未提供字庫時使用 DefaultWords
func NewRandomWordProvider(words ...string) *RandomWordProvider {
	if len(words) == 0 {
		words = DefaultWords
	}
	return &RandomWordProvider{words: words}
}

func (p *RandomWordProvider) Word() string {
	return p.words[rand.IntN(len(p.words))]
}

// DefaultWords 預設字庫
var DefaultWords = []string{
	"apple", "airplane", "anchor", "angel", "ant", "backpack", "balloon", "banana",
	"basket", "bat", "beach", "bear", "bed", "bee", "bicycle", "bird",
	"boat", "book", "bottle", "bridge", "broom", "bucket", "butterfly", "cactus",
	"cake", "camera", "candle", "car", "carrot", "castle", "cat", "chair",
	"cheese", "cloud", "clock", "cookie", "crab", "crown", "cup", "dinosaur",
	"dog", "dolphin", "door", "dragon", "drum", "duck", "ear", "egg",
	"elephant", "envelope", "eye", "feather", "fence", "fire", "fish", "flag",
	"flower", "fork", "frog", "ghost", "giraffe", "glasses", "guitar", "hammer",
	"hat", "heart", "helicopter", "horse", "house", "ice cream", "igloo", "island",
	"jellyfish", "kangaroo", "key", "kite", "ladder", "lamp", "leaf", "lemon",
	"lighthouse", "lion", "lollipop", "map", "moon", "mountain", "mouse", "mushroom",
	"octopus", "owl", "panda", "pencil", "penguin", "piano", "pizza", "rabbit",
	"rainbow", "robot", "rocket", "sandwich", "scissors", "shark", "ship", "snail",
	"snake", "snowman", "spider", "star", "sun", "sword", "table", "tent",
	"tiger", "tree", "train", "truck", "turtle", "umbrella", "volcano", "whale",
	"windmill", "zebra",
}

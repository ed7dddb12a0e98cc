package resolver

import "testing"

func TestResolveRef(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{
			name: "empty ref stays empty",
			base: "https://shop.example/p/1",
			ref:  "",
			want: "",
		},
		{
			name: "absolute https unchanged",
			base: "https://shop.example/p/1",
			ref:  "https://cdn.example/img/a.jpg",
			want: "https://cdn.example/img/a.jpg",
		},
		{
			name: "absolute http unchanged",
			base: "https://shop.example/p/1",
			ref:  "http://cdn.example/img/a.jpg",
			want: "http://cdn.example/img/a.jpg",
		},
		{
			name: "protocol relative inherits https",
			base: "https://shop.example/p/1",
			ref:  "//cdn.example/img/a.jpg",
			want: "https://cdn.example/img/a.jpg",
		},
		{
			name: "protocol relative inherits http",
			base: "http://shop.example/p/1",
			ref:  "//cdn.example/img/a.jpg",
			want: "http://cdn.example/img/a.jpg",
		},
		{
			name: "root relative path",
			base: "https://shop.example/p/1",
			ref:  "/img/a.jpg",
			want: "https://shop.example/img/a.jpg",
		},
		{
			name: "relative path against page directory",
			base: "https://shop.example/p/items/1",
			ref:  "a.jpg",
			want: "https://shop.example/p/items/a.jpg",
		},
		{
			name: "dot segments collapse",
			base: "https://shop.example/p/items/1",
			ref:  "../img/a.jpg",
			want: "https://shop.example/p/img/a.jpg",
		},
		{
			name: "schemeless base fails open",
			base: "not a url",
			ref:  "/img/a.jpg",
			want: "/img/a.jpg",
		},
		{
			name: "empty base fails open",
			base: "",
			ref:  "img/a.jpg",
			want: "img/a.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveRef(tt.base, tt.ref); got != tt.want {
				t.Errorf("ResolveRef(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
			}
		})
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://Shop.Example/p/1", "shop.example"},
		{"https://jp.mercari.com/item/m1", "jp.mercari.com"},
		{"", ""},
		{"/relative/only", ""},
	}
	for _, tt := range tests {
		if got := hostOf(tt.raw); got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestStripQuery(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"https://cdn.example/a.jpg?w=200&h=200", "https://cdn.example/a.jpg"},
		{"https://cdn.example/a.jpg", "https://cdn.example/a.jpg"},
		{"?only=query", ""},
	}
	for _, tt := range tests {
		if got := stripQuery(tt.ref); got != tt.want {
			t.Errorf("stripQuery(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

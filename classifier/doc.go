// Package classifier transforma texto ou dimensões de imagem em um par
// (categoria, confiança).
//
// Texto: soma de pesos por palavra-chave (len(palavra)/10 + 1) por categoria;
// vence a maior soma, empate resolvido pela ordem de Categories.
//
// Imagem: heurística provisória, não é um modelo treinado. Sorteia a categoria
// com pesos escolhidos pelo tamanho/proporção da imagem, usando uma fonte
// aleatória injetável (WithRandom, WithSeed) para testes reprodutíveis.
//
// Nenhum dos caminhos devolve erro: falha interna vira Fallback com Degraded=true.
package classifier
